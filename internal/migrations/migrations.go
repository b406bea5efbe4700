package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/models"
)

// Index is a secondary index created after the tables.
type Index struct {
	Name    string
	Table   string
	Columns string
	Unique  bool
}

// Schema lists the tables of one source database in creation order.
type Schema struct {
	Models  []interface{}
	Indexes []Index
}

// New builds the migration set for a source schema. The shared search term
// table is always created first.
func New(s Schema) *migrate.Migrations {
	all := append([]interface{}{
		(*models.SearchTerm)(nil),
	}, s.Models...)

	m := migrate.NewMigrations()
	registerTables(m, all)
	registerIndexes(m, s.Indexes)
	return m
}

// Runs builds the migration set of the harvest run ledger.
func Runs() *migrate.Migrations {
	m := migrate.NewMigrations()
	registerTables(m, []interface{}{(*models.HarvestRun)(nil)})
	registerIndexes(m, []Index{
		{Name: "idx_harvest_runs_source_status", Table: "harvest_runs", Columns: "source, status"},
	})
	return m
}

// Run runs all pending migrations.
func Run(ctx context.Context, db *bun.DB, m *migrate.Migrations, logger *zap.Logger) error {
	migrator := migrate.NewMigrator(db, m)

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if group.IsZero() {
		logger.Debug("no new migrations to run")
		return nil
	}

	logger.Info("migrated", zap.String("group", group.String()))
	return nil
}

// Clear rolls back every applied group, dropping the whole table set, and
// resets the migration bookkeeping.
func Clear(ctx context.Context, db *bun.DB, m *migrate.Migrations, logger *zap.Logger) error {
	migrator := migrate.NewMigrator(db, m)

	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	for {
		group, err := migrator.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		if group.IsZero() {
			break
		}
		logger.Info("rolled back", zap.String("group", group.String()))
	}

	if err := migrator.Reset(ctx); err != nil {
		return fmt.Errorf("reset migrations: %w", err)
	}
	return nil
}
