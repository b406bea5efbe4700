package clinicaltrials

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Sink stores trials.
type Sink struct{}

func (Sink) Key(s Study) string { return strings.TrimSpace(s.Protocol.Identification.NctID) }

func (Sink) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, (*Trial)(nil), "nct_id", ids)
}

func (Sink) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, &SearchToTrial{SearchID: searchID, NctID: id})
}

func (Sink) Store(ctx context.Context, db bun.IDB, s Study) (string, error) {
	b, err := MapStudy(s)
	if err != nil {
		return "", err
	}
	if err := Save(ctx, db, b); err != nil {
		return "", err
	}
	return b.Trial.NctID, nil
}

// Save upserts the trial and replaces its child collections.
func Save(ctx context.Context, db bun.IDB, b *Bundle) error {
	id := b.Trial.NctID
	if err := harvest.Upsert(ctx, db, b.Trial, "nct_id"); err != nil {
		return err
	}

	steps := []func() error{
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.Organizations) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.Conditions) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.Keywords) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.Interventions) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.Outcomes) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.Locations) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.References) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.Eligibility) },
		func() error { return harvest.ReplaceChildren(ctx, db, "nct_id", id, b.AdverseEvents) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// NewHarvester wires the ClinicalTrials.gov client and sink into a harvester.
func NewHarvester(db *bun.DB, client *Client, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[Study] {
	return &harvest.Harvester[Study]{
		Source:   Name,
		DB:       db,
		Fetch:    client.Fetch,
		Sink:     Sink{},
		Logger:   logger,
		Recorder: rec,
	}
}
