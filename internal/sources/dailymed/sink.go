package dailymed

import (
	"bytes"
	"context"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/blobstore"
	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Sink stores drugs. NDC codes, and the label XML when an archive is set,
// are fetched only for drugs that are not yet on file. Labels archived by a
// harvest that rolls back are deleted again.
type Sink struct {
	client  *Client
	archive blobstore.Store
	logger  *zap.Logger

	// archived holds the label keys written by the current harvest.
	archived []string
}

// NewSink creates a drug sink. archive may be nil.
func NewSink(client *Client, archive blobstore.Store, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, archive: archive, logger: logger}
}

func (s *Sink) Key(spl SPL) string { return strings.TrimSpace(spl.SetID) }

func (s *Sink) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, (*Drug)(nil), "set_id", ids)
}

func (s *Sink) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, &SearchToDrug{SearchID: searchID, SetID: id})
}

func (s *Sink) Store(ctx context.Context, db bun.IDB, spl SPL) (string, error) {
	if spl.SetID == "" {
		return "", harvest.Invalid("spl without setid")
	}

	codes, err := s.client.NDCs(ctx, spl.SetID)
	if err != nil {
		return "", err
	}
	b, err := MapSPL(spl, codes)
	if err != nil {
		return "", err
	}

	if s.archive != nil {
		key, err := s.archiveLabel(ctx, spl.SetID)
		if err != nil {
			return "", err
		}
		if key != "" {
			b.Drug.LabelKey = &key
		}
	}

	if err := Save(ctx, db, b); err != nil {
		return "", err
	}
	return b.Drug.SetID, nil
}

// archiveLabel returns "" when the document could not be fetched.
func (s *Sink) archiveLabel(ctx context.Context, setID string) (string, error) {
	doc, err := s.client.LabelXML(ctx, setID)
	if err != nil {
		return "", err
	}
	if len(doc) == 0 {
		s.logger.Warn("label document unavailable", zap.String("set_id", setID))
		return "", nil
	}
	key := LabelKey(setID)
	if _, err := s.archive.Put(ctx, key, bytes.NewReader(doc), "application/xml"); err != nil {
		return "", err
	}
	s.archived = append(s.archived, key)
	return key, nil
}

// Finish removes the labels archived by a harvest that did not commit.
func (s *Sink) Finish(ctx context.Context, committed bool) {
	keys := s.archived
	s.archived = nil
	if committed {
		return
	}
	for _, key := range keys {
		if err := s.archive.Delete(ctx, key); err != nil {
			s.logger.Warn("delete orphaned label", zap.String("key", key), zap.Error(err))
		}
	}
}

// Save upserts the drug and replaces its NDC codes.
func Save(ctx context.Context, db bun.IDB, b *Bundle) error {
	if err := harvest.Upsert(ctx, db, b.Drug, "set_id"); err != nil {
		return err
	}
	return harvest.ReplaceChildren(ctx, db, "set_id", b.Drug.SetID, b.NDCs)
}

// NewHarvester wires the DailyMed client and sink into a harvester.
func NewHarvester(db *bun.DB, client *Client, archive blobstore.Store, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[SPL] {
	return &harvest.Harvester[SPL]{
		Source:   Name,
		DB:       db,
		Fetch:    client.Fetch,
		Sink:     NewSink(client, archive, logger),
		Logger:   logger,
		Recorder: rec,
	}
}
