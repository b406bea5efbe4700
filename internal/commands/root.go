// Package commands is the biominer command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/config"
	"github.com/mkoziy/biomed-miners/internal/logging"
	"github.com/mkoziy/biomed-miners/internal/metrics"
)

const userAgent = "biominer/1.0"

// App is the state shared by every command of one process.
type App struct {
	cfg     *config.Config
	logs    *logging.Once
	logger  *zap.Logger
	metrics *metrics.Metrics

	metricsFile string
	debug       bool

	// load replaces config.Load in tests.
	load func() (*config.Config, error)
}

func init() {
	cobra.EnableTraverseRunHooks = true
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRoot(&App{load: config.Load})
}

func newRoot(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "biominer",
		Short:         "biominer harvests public biomedical APIs into per-source SQLite databases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write prometheus metrics to this file when the command finishes")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log every SQL query")

	for _, s := range a.sources() {
		root.AddCommand(a.sourceCommand(s))
	}
	root.AddCommand(a.orangeBookCommand(), a.watchCommand(), a.serveCommand())
	return root
}

func (a *App) setup() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := a.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.debug {
		cfg.DBDebug = true
	}

	a.logs = logging.NewOnce(logging.Options{Level: cfg.LogLevel, Development: cfg.Development()})
	logger, err := a.logs.Get()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.metrics = metrics.New()
	return nil
}

func (a *App) teardown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.metricsFile == "" || a.metrics == nil {
		return nil
	}
	return a.metrics.WriteFile(a.metricsFile)
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}
