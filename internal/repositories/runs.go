// Package repositories holds read queries over the search terms of a source
// database and over the harvest run ledger.
package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/models"
)

// RecentSearchTerms returns search terms, most recently used first.
func RecentSearchTerms(ctx context.Context, db bun.IDB, limit int) ([]models.SearchTerm, error) {
	var terms []models.SearchTerm
	err := db.NewSelect().
		Model(&terms).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)

	return terms, err
}

// RecentRuns returns the ledger's runs of source, newest first. An empty
// status matches all.
func RecentRuns(ctx context.Context, db bun.IDB, source, status string, limit int) ([]models.HarvestRun, error) {
	var runs []models.HarvestRun
	q := db.NewSelect().
		Model(&runs).
		Where("source = ?", source).
		Order("id DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Scan(ctx)

	return runs, err
}

// StatusCount is the number of runs in one status.
type StatusCount struct {
	Status string `bun:"status"`
	N      int    `bun:"n"`
}

// RunsByStatus counts the runs of source per status.
func RunsByStatus(ctx context.Context, db bun.IDB, source string) ([]StatusCount, error) {
	var counts []StatusCount
	err := db.NewSelect().
		Model((*models.HarvestRun)(nil)).
		Column("status").
		Where("source = ?", source).
		ColumnExpr("COUNT(*) AS n").
		Group("status").
		Order("status").
		Scan(ctx, &counts)

	return counts, err
}

// SearchTermsFor returns the terms linked to entity id through the
// association table assoc, whose entity column is column.
func SearchTermsFor(ctx context.Context, db bun.IDB, assoc, column, id string) ([]models.SearchTerm, error) {
	var terms []models.SearchTerm
	err := db.NewSelect().
		Model(&terms).
		Join("JOIN ? AS a ON a.search_id = st.id", bun.Ident(assoc)).
		Where("a.? = ?", bun.Ident(column), id).
		Order("st.term").
		Scan(ctx)

	return terms, err
}
