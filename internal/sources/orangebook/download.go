package orangebook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/blobstore"
	"github.com/mkoziy/biomed-miners/internal/ratelimit"
)

// Name identifies the source in configuration, metrics and file names.
const Name = "orangebook"

const defaultBaseURL = "https://www.fda.gov"

var baseURL = defaultBaseURL

const (
	downloadPath = "/media/76860/download"
	// ArchiveKey is where the downloaded zip is kept in the blob store.
	ArchiveKey = "orangebook/EOBZIP.zip"
	// MaxAge is how old the extracted files may get before Import downloads
	// them again.
	MaxAge = 30 * 24 * time.Hour

	ProductsFile    = "products.txt"
	PatentFile      = "patent.txt"
	ExclusivityFile = "exclusivity.txt"

	// fda.gov rejects clients without a browser user agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var dataFiles = []string{ProductsFile, PatentFile, ExclusivityFile}

var (
	// ErrDataUnavailable is returned when the zip could not be downloaded.
	ErrDataUnavailable = errors.New("orange book data unavailable")
	// ErrMissingFile is returned when the zip lacks one of the data files.
	ErrMissingFile = errors.New("orange book archive is missing a data file")
)

// DefaultLimits returns the built-in retry policy.
func DefaultLimits() ratelimit.Config {
	return ratelimit.DefaultConfig()
}

// Dir returns the directory holding the extracted files.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, Name)
}

// Stale reports whether the products file under dir is missing or older
// than maxAge.
func Stale(dir string, maxAge time.Duration, now time.Time) bool {
	fi, err := os.Stat(filepath.Join(dir, ProductsFile))
	if err != nil {
		return true
	}
	return now.Sub(fi.ModTime()) > maxAge
}

// Downloader fetches the Orange Book data files.
type Downloader struct {
	api     *apiclient.Client
	archive blobstore.Store
	logger  *zap.Logger
}

// NewDownloader creates a downloader. archive may be nil.
func NewDownloader(limiter ratelimit.Limiter, opts apiclient.Options, archive blobstore.Store, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = baseURL
	if opts.UserAgent == "" {
		opts.UserAgent = userAgent
	}
	return &Downloader{api: apiclient.New(limiter, opts, logger), archive: archive, logger: logger}
}

// Download streams the zip to disk and extracts the data files into dir.
func (d *Downloader) Download(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	zipPath := filepath.Join(dir, "EOBZIP.zip")
	defer os.Remove(zipPath)

	d.logger.Info("downloading orange book", zap.String("url", baseURL+downloadPath))
	resp, err := d.api.Download(ctx, downloadPath, url.Values{"attachment": {""}}, zipPath)
	if err != nil {
		return err
	}
	if resp == nil {
		return ErrDataUnavailable
	}

	if err := Extract(zipPath, dir); err != nil {
		return err
	}

	if d.archive != nil {
		f, err := os.Open(zipPath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		loc, err := d.archive.Put(ctx, ArchiveKey, f, "application/zip")
		_ = f.Close()
		if err != nil {
			return err
		}
		d.logger.Info("orange book archived", zap.String("location", loc))
	}

	d.logger.Info("orange book extracted", zap.String("dir", dir), zap.Int64("bytes", resp.Size))
	return nil
}

// EnsureFresh downloads the data when force is set or the files under dir
// are stale.
func (d *Downloader) EnsureFresh(ctx context.Context, dir string, force bool) error {
	if !force && !Stale(dir, MaxAge, time.Now()) {
		d.logger.Info("orange book data is fresh", zap.String("dir", dir))
		return nil
	}
	return d.Download(ctx, dir)
}

// Extract writes the three data files of the zip at src into dir. Other
// members are ignored. Nothing is written unless all three are present.
func Extract(src, dir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	found := map[string]*zip.File{}
	for _, f := range zr.File {
		name := strings.ToLower(filepath.Base(f.Name))
		for _, want := range dataFiles {
			if name == want {
				found[want] = f
			}
		}
	}
	for _, want := range dataFiles {
		if found[want] == nil {
			return fmt.Errorf("%w: %s", ErrMissingFile, want)
		}
	}
	for _, want := range dataFiles {
		if err := extractFile(found[want], filepath.Join(dir, want)); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("install %s: %w", f.Name, err)
	}
	return nil
}
