package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/blobstore"
	"github.com/mkoziy/biomed-miners/internal/database"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/migrations"
	"github.com/mkoziy/biomed-miners/internal/models"
	"github.com/mkoziy/biomed-miners/internal/ratelimit"
	"github.com/mkoziy/biomed-miners/internal/repositories"
)

const defaultMaxRecords = 9999

type entity struct {
	table string
	model any
	// assoc and column name the search association table and its entity
	// key column; empty for child tables.
	assoc  string
	column string
}

// source describes one miner's command tree.
type source struct {
	name   string
	short  string
	schema migrations.Schema
	// entities are counted by summary.
	entities []entity
	// check validates source settings before any I/O.
	check func() error
	// runner builds the harvester for one harvest call.
	runner func(ctx context.Context, db *bun.DB) (harvest.Runner, error)
	// harvestFlags registers source-specific harvest flags.
	harvestFlags func(cmd *cobra.Command)
	// extra subcommands.
	extra []*cobra.Command
}

func (a *App) sourceCommand(s source) *cobra.Command {
	cmd := &cobra.Command{
		Use:   s.name,
		Short: s.short,
	}
	if s.check != nil {
		cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			return s.check()
		}
	}

	var maxRecords int
	harvestCmd := &cobra.Command{
		Use:   "harvest <query...>",
		Short: "Search the source and store new records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created := a.harvest(cmd.Context(), s, strings.Join(args, " "), maxRecords)
			fmt.Fprintln(cmd.OutOrStdout(), created)
			return nil
		},
	}
	harvestCmd.Flags().IntVar(&maxRecords, "max-records", defaultMaxRecords, "maximum number of records to fetch")
	if s.harvestFlags != nil {
		s.harvestFlags(harvestCmd)
	}

	cmd.AddCommand(
		harvestCmd,
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := a.openDB(cmd.Context(), s)
				if err != nil {
					return err
				}
				defer db.Close()
				a.logger.Info("schema ready", zap.String("source", s.name))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every table of the source",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := database.OpenSource(a.cfg.DataDir, s.name, a.cfg.DBDebug)
				if err != nil {
					return err
				}
				defer db.Close()
				return migrations.Clear(cmd.Context(), db, migrations.New(s.schema), a.logger)
			},
		},
		&cobra.Command{
			Use:   "summary",
			Short: "Print record, search term and run counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := a.openDB(cmd.Context(), s)
				if err != nil {
					return err
				}
				defer db.Close()
				runs, err := a.openRuns(cmd.Context())
				if err != nil {
					return err
				}
				defer runs.Close()
				return summarize(cmd, db, runs, s)
			},
		},
	)
	cmd.AddCommand(&cobra.Command{
		Use:   "terms <id>",
		Short: "List the search terms that surfaced a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer db.Close()
			return listTerms(cmd, db, s, args[0])
		},
	})
	cmd.AddCommand(s.extra...)
	return cmd
}

// harvest migrates, runs one harvest and returns the number of new records.
// Failures are logged and reported as zero.
func (a *App) harvest(ctx context.Context, s source, query string, maxRecords int) int {
	logger := a.logger.With(zap.String("source", s.name))

	db, err := a.openDB(ctx, s)
	if err != nil {
		logger.Error("open database", zap.Error(err))
		return 0
	}
	defer db.Close()

	runs, err := a.openRuns(ctx)
	if err != nil {
		logger.Error("open run ledger", zap.Error(err))
		return 0
	}
	defer runs.Close()

	r, err := s.runner(ctx, db)
	if err != nil {
		logger.Error("build harvester", zap.Error(err))
		return 0
	}
	ledger := &harvest.Ledger{DB: runs, Logger: a.logger}
	rep, err := ledger.Track(s.name, r).Run(ctx, query, maxRecords)
	if err != nil {
		logger.Error("harvest failed", zap.String("query", query), zap.Error(err))
		return 0
	}
	return rep.Created
}

// openDB opens and migrates the source database.
func (a *App) openDB(ctx context.Context, s source) (*bun.DB, error) {
	db, err := database.OpenSource(a.cfg.DataDir, s.name, a.cfg.DBDebug)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(ctx, db, migrations.New(s.schema), a.logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// openRuns opens and migrates the harvest run ledger.
func (a *App) openRuns(ctx context.Context) (*bun.DB, error) {
	db, err := database.OpenRuns(a.cfg.DataDir, a.cfg.DBDebug)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(ctx, db, migrations.Runs(), a.logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func summarize(cmd *cobra.Command, db, runsDB *bun.DB, s source) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for _, e := range s.entities {
		n, err := db.NewSelect().Model(e.model).Count(ctx)
		if err != nil {
			return fmt.Errorf("count %s: %w", e.table, err)
		}
		fmt.Fprintf(out, "%s: %d\n", e.table, n)
	}

	terms, err := db.NewSelect().Model((*models.SearchTerm)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count search terms: %w", err)
	}
	fmt.Fprintf(out, "search_terms: %d\n", terms)

	runs, err := repositories.RunsByStatus(ctx, runsDB, s.name)
	if err != nil {
		return fmt.Errorf("count harvest runs: %w", err)
	}
	for _, r := range runs {
		fmt.Fprintf(out, "harvest_runs[%s]: %d\n", r.Status, r.N)
	}
	return nil
}

func listTerms(cmd *cobra.Command, db *bun.DB, s source, id string) error {
	out := cmd.OutOrStdout()
	for _, e := range s.entities {
		if e.assoc == "" {
			continue
		}
		terms, err := repositories.SearchTermsFor(cmd.Context(), db, e.assoc, e.column, id)
		if err != nil {
			return fmt.Errorf("select terms for %s: %w", e.table, err)
		}
		for _, st := range terms {
			fmt.Fprintf(out, "%s\t%s\t%s\n", e.table, st.Term, st.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// client returns the rate limiter and client options for source.
func (a *App) client(source string, fallback ratelimit.Config) (ratelimit.Limiter, apiclient.Options) {
	lim := a.cfg.Limits(source, fallback)
	return ratelimit.NewLimiter(lim), apiclient.Options{
		Timeout:    a.cfg.HTTPTimeout,
		MaxRetries: lim.MaxRetries,
		UserAgent:  userAgent,
		OnAttempt:  a.metrics.AttemptObserver(source),
	}
}

// archive returns the configured blob store.
func (a *App) archive(ctx context.Context) (blobstore.Store, error) {
	if a.cfg.BlobBackend != "s3" {
		return blobstore.NewLocal(a.cfg.BlobDir), nil
	}
	s3, err := blobstore.NewS3(ctx, blobstore.S3Options{
		Endpoint:  a.cfg.S3Endpoint,
		Region:    a.cfg.S3Region,
		Bucket:    a.cfg.S3Bucket,
		AccessKey: a.cfg.S3AccessKey,
		SecretKey: a.cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return s3, nil
}
