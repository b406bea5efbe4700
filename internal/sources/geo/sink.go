package geo

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// MapGSE converts a dump row into a Series.
func MapGSE(g GSE) (*Series, error) {
	id := strings.TrimSpace(g.GSE)
	if id == "" {
		return nil, harvest.Invalid("gse row without accession")
	}

	var submitted *time.Time
	if d := models.Deref(g.SubmissionDate); d != "" {
		if t, err := time.Parse("2006-01-02", d); err == nil {
			submitted = &t
		}
	}

	return &Series{
		GSE:            id,
		Title:          models.StringPtr(models.Deref(g.Title)),
		Summary:        models.StringPtr(models.Deref(g.Summary)),
		Type:           models.StringPtr(models.Deref(g.Type)),
		PubmedID:       models.StringPtr(models.Deref(g.PubmedID)),
		SubmissionDate: submitted,
		Contributor:    models.StringPtr(models.Deref(g.Contributor)),
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// Sink stores series.
type Sink struct{}

func (Sink) Key(g GSE) string { return strings.TrimSpace(g.GSE) }

func (Sink) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, (*Series)(nil), "gse", ids)
}

func (Sink) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, &SearchToSeries{SearchID: searchID, GSE: id})
}

func (Sink) Store(ctx context.Context, db bun.IDB, g GSE) (string, error) {
	s, err := MapGSE(g)
	if err != nil {
		return "", err
	}
	if err := harvest.Upsert(ctx, db, s, "gse"); err != nil {
		return "", err
	}
	return s.GSE, nil
}

// NewHarvester copies matching series from the dump searcher into db.
func NewHarvester(db *bun.DB, searcher *Searcher, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[GSE] {
	return &harvest.Harvester[GSE]{
		Source:   Name,
		DB:       db,
		Fetch:    searcher.Fetch,
		Sink:     Sink{},
		Logger:   logger,
		Recorder: rec,
	}
}
