package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

// ErrMissingEmail is returned when a source requires a contact email.
var ErrMissingEmail = errors.New("ENTREZ_EMAIL is required")

// Config holds every setting read from the environment.
type Config struct {
	DataDir   string `envconfig:"DATA_DIR" default:"data"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	DBDebug   bool   `envconfig:"DB_DEBUG" default:"false"`

	RateLimitsFile string        `envconfig:"RATE_LIMITS_FILE"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	EntrezEmail  string `envconfig:"ENTREZ_EMAIL"`
	EntrezAPIKey string `envconfig:"ENTREZ_API_KEY"`
	EntrezTool   string `envconfig:"ENTREZ_TOOL" default:"biominer"`

	BlobBackend string `envconfig:"BLOB_BACKEND" default:"local"`
	BlobDir     string `envconfig:"BLOB_DIR" default:"data/blobs"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`

	WatchSchedule string   `envconfig:"WATCH_SCHEDULE" default:"0 3 * * *"`
	WatchJobs     []string `envconfig:"WATCH_JOBS"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":4242"`

	RateLimits ratelimit.SourceConfigs `ignored:"true"`
}

// Load reads an optional .env file, then the environment, then the rate
// limit file named by RATE_LIMITS_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	limits, err := ratelimit.LoadSourceConfigsFile(c.RateLimitsFile)
	if err != nil {
		return nil, err
	}
	c.RateLimits = limits

	return &c, nil
}

func (c *Config) validate() error {
	switch c.BlobBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("BLOB_BACKEND=s3 requires S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	return nil
}

// Development reports whether console logging was requested.
func (c *Config) Development() bool {
	return strings.EqualFold(c.LogFormat, "console")
}

// RequireEntrez checks the NCBI contact settings.
func (c *Config) RequireEntrez() error {
	if strings.TrimSpace(c.EntrezEmail) == "" {
		return ErrMissingEmail
	}
	return nil
}

// Limits returns the rate limit config for source over its built-in defaults.
func (c *Config) Limits(source string, fallback ratelimit.Config) ratelimit.Config {
	return c.RateLimits.Resolve(source, fallback)
}
