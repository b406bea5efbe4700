package rxnav

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Sink stores drugs. Class lookups run only for drugs not yet on file.
type Sink struct {
	client *Client
	logger *zap.Logger
}

// NewSink creates a drug sink.
func NewSink(client *Client, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, logger: logger}
}

func (s *Sink) Key(c Concept) string { return strings.TrimSpace(c.RxCUI) }

func (s *Sink) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, (*Drug)(nil), "rxcui", ids)
}

func (s *Sink) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, &SearchToDrug{SearchID: searchID, RxCUI: id})
}

func (s *Sink) Store(ctx context.Context, db bun.IDB, c Concept) (string, error) {
	if c.RxCUI == "" {
		return "", harvest.Invalid("concept without rxcui")
	}

	byRelation := make(map[string][]ClassInfo, len(Relations))
	for _, rela := range Relations {
		infos, err := s.client.Classes(ctx, c.RxCUI, rela)
		if err != nil {
			return "", err
		}
		byRelation[rela] = infos
	}

	b, err := MapConcept(c, byRelation)
	if err != nil {
		return "", err
	}
	if err := Save(ctx, db, b); err != nil {
		return "", err
	}
	s.logger.Debug("drug stored",
		zap.String("rxcui", b.Drug.RxCUI),
		zap.Int("classes", len(b.Classes)),
	)
	return b.Drug.RxCUI, nil
}

// Save upserts the drug and its classes and replaces the drug's class links.
func Save(ctx context.Context, db bun.IDB, b *Bundle) error {
	if err := harvest.Upsert(ctx, db, b.Drug, "rxcui"); err != nil {
		return err
	}
	if len(b.Classes) > 0 {
		if err := harvest.Upsert(ctx, db, &b.Classes, "class_id"); err != nil {
			return err
		}
	}
	return harvest.ReplaceChildren(ctx, db, "rxcui", b.Drug.RxCUI, b.Links)
}

// NewHarvester wires the RxNav client and sink into a harvester.
func NewHarvester(db *bun.DB, client *Client, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[Concept] {
	return &harvest.Harvester[Concept]{
		Source:   Name,
		DB:       db,
		Fetch:    client.Fetch,
		Sink:     NewSink(client, logger),
		Logger:   logger,
		Recorder: rec,
	}
}
