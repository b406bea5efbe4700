package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type job struct {
	source source
	query  string
}

// parseJobs reads "source:query" pairs.
func (a *App) parseJobs(entries []string) ([]job, error) {
	byName := map[string]source{}
	for _, s := range a.sources() {
		byName[s.name] = s
	}

	var jobs []job
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, query, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("watch job %q: want source:query", entry)
		}
		s, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("watch job %q: unknown source %q", entry, name)
		}
		if s.check != nil {
			if err := s.check(); err != nil {
				return nil, fmt.Errorf("watch job %q: %w", entry, err)
			}
		}
		jobs = append(jobs, job{source: s, query: strings.TrimSpace(query)})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("WATCH_JOBS is empty")
	}
	return jobs, nil
}

// runJobs harvests every job in order and returns the records created.
func (a *App) runJobs(ctx context.Context, jobs []job, maxRecords int) int {
	created := 0
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		n := a.harvest(ctx, j.source, j.query, maxRecords)
		a.logger.Info("watch job finished",
			zap.String("source", j.source.name),
			zap.String("query", j.query),
			zap.Int("created", n),
		)
		created += n
	}
	if a.metricsFile != "" {
		if err := a.metrics.WriteFile(a.metricsFile); err != nil {
			a.logger.Warn("write metrics", zap.Error(err))
		}
	}
	return created
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

func (a *App) watchCommand() *cobra.Command {
	var (
		once       bool
		maxRecords int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run WATCH_JOBS on WATCH_SCHEDULE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.parseJobs(a.cfg.WatchJobs)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if once {
				fmt.Fprintln(cmd.OutOrStdout(), a.runJobs(ctx, jobs, maxRecords))
				return nil
			}

			logger := cronLogger{logger: a.logger}
			c := cron.New(
				cron.WithLogger(logger),
				cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
			)
			if _, err := c.AddFunc(a.cfg.WatchSchedule, func() {
				a.runJobs(ctx, jobs, maxRecords)
			}); err != nil {
				return fmt.Errorf("parse WATCH_SCHEDULE %q: %w", a.cfg.WatchSchedule, err)
			}

			a.logger.Info("watching",
				zap.String("schedule", a.cfg.WatchSchedule),
				zap.Int("jobs", len(jobs)),
			)
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run the jobs once and exit")
	cmd.Flags().IntVar(&maxRecords, "max-records", defaultMaxRecords, "maximum number of records per job")
	return cmd
}
