package chembl

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Sink stores molecules. Mechanisms are fetched only for molecules that are
// not yet on file.
type Sink struct {
	client *Client
	logger *zap.Logger
}

// NewSink creates a molecule sink.
func NewSink(client *Client, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, logger: logger}
}

func (s *Sink) Key(rec MoleculeRecord) string { return strings.TrimSpace(rec.ChemblID) }

func (s *Sink) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, (*Molecule)(nil), "chembl_id", ids)
}

func (s *Sink) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, &SearchToMolecule{SearchID: searchID, ChemblID: id})
}

func (s *Sink) Store(ctx context.Context, db bun.IDB, rec MoleculeRecord) (string, error) {
	b, err := MapMolecule(rec)
	if err != nil {
		return "", err
	}

	mechs, err := s.client.Mechanisms(ctx, b.Molecule.ChemblID)
	if err != nil {
		return "", err
	}
	b.Mechanisms = MapMechanisms(b.Molecule.ChemblID, mechs)

	if err := Save(ctx, db, b); err != nil {
		return "", err
	}
	return b.Molecule.ChemblID, nil
}

// Save upserts the molecule and replaces its child collections.
func Save(ctx context.Context, db bun.IDB, b *Bundle) error {
	id := b.Molecule.ChemblID
	if err := harvest.Upsert(ctx, db, b.Molecule, "chembl_id"); err != nil {
		return err
	}
	if err := harvest.ReplaceChildren(ctx, db, "chembl_id", id, b.Properties); err != nil {
		return err
	}
	if err := harvest.ReplaceChildren(ctx, db, "chembl_id", id, b.Synonyms); err != nil {
		return err
	}
	if err := harvest.ReplaceChildren(ctx, db, "chembl_id", id, b.ATC); err != nil {
		return err
	}
	if err := harvest.ReplaceChildren(ctx, db, "chembl_id", id, b.CrossRefs); err != nil {
		return err
	}
	return harvest.ReplaceChildren(ctx, db, "chembl_id", id, b.Mechanisms)
}

// NewHarvester wires the ChEMBL client and sink into a harvester.
func NewHarvester(db *bun.DB, client *Client, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[MoleculeRecord] {
	return &harvest.Harvester[MoleculeRecord]{
		Source:   Name,
		DB:       db,
		Fetch:    client.Fetch,
		Sink:     NewSink(client, logger),
		Logger:   logger,
		Recorder: rec,
	}
}
