package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

func registerTables(m *migrate.Migrations, modelsList []interface{}) {
	m.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, model := range modelsList {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for i := len(modelsList) - 1; i >= 0; i-- {
			if _, err := db.NewDropTable().Model(modelsList[i]).IfExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
