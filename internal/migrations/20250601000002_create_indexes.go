package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

func registerIndexes(m *migrate.Migrations, indexes []Index) {
	m.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, idx := range indexes {
			kind := "INDEX"
			if idx.Unique {
				kind = "UNIQUE INDEX"
			}
			q := fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s(%s)", kind, idx.Name, idx.Table, idx.Columns)
			if _, err := db.ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+idx.Name); err != nil {
				return err
			}
		}
		return nil
	})
}
