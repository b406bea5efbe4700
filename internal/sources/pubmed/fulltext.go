package pubmed

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// BackfillFullText fetches PMC body text for stored publications that have a
// PMCID but no text, skipping those checked within recheck. It processes up
// to batch rows and returns how many gained text.
func BackfillFullText(ctx context.Context, db *bun.DB, client *Client, batch int, recheck time.Duration, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batch <= 0 {
		batch = chunkSize
	}
	threshold := time.Now().UTC().Add(-recheck)

	var pubs []Publication
	err := db.NewSelect().
		Model(&pubs).
		Column("pmid", "pmcid").
		Where("pmcid IS NOT NULL").
		Where("full_text IS NULL").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("full_text_last_checked IS NULL").
				WhereOr("full_text_last_checked < ?", threshold)
		}).
		Order("pmid").
		Limit(batch).
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("select publications without text: %w", err)
	}

	updated := 0
	for _, p := range pubs {
		body, err := client.FullText(ctx, *p.PMCID)
		if err != nil {
			return updated, err
		}
		now := time.Now().UTC()
		q := db.NewUpdate().
			Model((*Publication)(nil)).
			Set("full_text_last_checked = ?", now).
			Where("pmid = ?", p.PMID)
		if body != "" {
			q = q.Set("full_text = ?", body)
			updated++
		}
		if _, err := q.Exec(ctx); err != nil {
			return updated, fmt.Errorf("update full text %s: %w", p.PMID, err)
		}
	}

	logger.Info("full text backfill finished", zap.Int("checked", len(pubs)), zap.Int("updated", updated))
	return updated, nil
}
