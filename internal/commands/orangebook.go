package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/database"
	"github.com/mkoziy/biomed-miners/internal/migrations"
	"github.com/mkoziy/biomed-miners/internal/models"
	"github.com/mkoziy/biomed-miners/internal/sources/orangebook"
)

// orangeBookCommand builds the Orange Book tree. The data is a bulk file, so
// there is no query harvest; import replaces the tables from the download.
func (a *App) orangeBookCommand() *cobra.Command {
	s := source{
		name:   orangebook.Name,
		schema: orangebook.Schema,
		entities: []entity{
			{"products", (*orangebook.Product)(nil), "", ""},
			{"patents", (*orangebook.Patent)(nil), "", ""},
			{"exclusivity", (*orangebook.Exclusivity)(nil), "", ""},
		},
	}
	cmd := &cobra.Command{
		Use:   orangebook.Name,
		Short: "FDA Orange Book products, patents and exclusivity",
	}

	var force, archive, keep bool
	download := &cobra.Command{
		Use:   "download",
		Short: "Download and extract the Orange Book files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.orangeBookDownloader(ctx, archive)
			if err != nil {
				return err
			}
			dir := orangebook.Dir(a.cfg.DataDir)
			if err := d.EnsureFresh(ctx, dir, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
	download.Flags().BoolVar(&force, "force", false, "download even when the files are fresh")
	download.Flags().BoolVar(&archive, "archive", false, "keep the zip in the blob store")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load the Orange Book files, downloading them when stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.orangeBookDownloader(ctx, archive)
			if err != nil {
				return err
			}
			dir := orangebook.Dir(a.cfg.DataDir)
			if err := d.EnsureFresh(ctx, dir, force); err != nil {
				return err
			}

			db, err := a.openDB(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			c, err := orangebook.Import(ctx, db, dir, !keep, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "products\t%d\npatents\t%d\nexclusivity\t%d\n", c.Products, c.Patents, c.Exclusivity)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&force, "force", false, "download even when the files are fresh")
	importCmd.Flags().BoolVar(&archive, "archive", false, "keep the zip in the blob store")
	importCmd.Flags().BoolVar(&keep, "no-refresh", false, "merge into the existing tables instead of replacing them")

	var limit int
	query := &cobra.Command{
		Use:   "query <keyword>",
		Short: "List products by ingredient or trade name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx, s)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := orangebook.FindProducts(ctx, db, args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n", r.ApplType, r.ApplNo, r.ProductNo,
					models.Deref(r.TradeName), models.Deref(r.Ingredient), r.Patents, r.Exclusivity)
			}
			return nil
		},
	}
	query.Flags().IntVar(&limit, "limit", 50, "maximum products, 0 for all")

	cmd.AddCommand(
		download,
		importCmd,
		query,
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
			Short: "Print table counts and data age",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				db, err := a.openDB(ctx, s)
				if err != nil {
					return err
				}
				defer db.Close()

				out := cmd.OutOrStdout()
				for _, e := range s.entities {
					n, err := db.NewSelect().Model(e.model).Count(ctx)
					if err != nil {
						return fmt.Errorf("count %s: %w", e.table, err)
					}
					fmt.Fprintf(out, "%s: %d\n", e.table, n)
				}
				fmt.Fprintf(out, "stale: %t\n", orangebook.Stale(orangebook.Dir(a.cfg.DataDir), orangebook.MaxAge, time.Now()))
				return nil
			},
		},
	)
	return cmd
}

func (a *App) orangeBookDownloader(ctx context.Context, archive bool) (*orangebook.Downloader, error) {
	lim, opts := a.client(orangebook.Name, orangebook.DefaultLimits())
	opts.Timeout = 10 * time.Minute
	if !archive {
		return orangebook.NewDownloader(lim, opts, nil, a.logger), nil
	}
	store, err := a.archive(ctx)
	if err != nil {
		return nil, err
	}
	return orangebook.NewDownloader(lim, opts, store, a.logger), nil
}
