package uniprot

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Sink stores proteins.
type Sink struct{}

func (Sink) Key(e Entry) string { return strings.TrimSpace(e.PrimaryAccession) }

func (Sink) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, (*Protein)(nil), "accession", ids)
}

func (Sink) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, &SearchToProtein{SearchID: searchID, Accession: id})
}

func (Sink) Store(ctx context.Context, db bun.IDB, e Entry) (string, error) {
	p, err := MapEntry(e)
	if err != nil {
		return "", err
	}
	if err := harvest.Upsert(ctx, db, p, "accession"); err != nil {
		return "", err
	}
	return p.Accession, nil
}

// NewHarvester wires the UniProt client and sink into a harvester.
func NewHarvester(db *bun.DB, client *Client, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[Entry] {
	return &harvest.Harvester[Entry]{
		Source:   Name,
		DB:       db,
		Fetch:    client.Fetch,
		Sink:     Sink{},
		Logger:   logger,
		Recorder: rec,
	}
}
