package pubmed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Sink stores publications. New PMIDs are fetched in bulk with efetch;
// an article whose DOI is already held by another PMID is linked to that
// publication instead of being stored twice.
type Sink struct {
	client   *Client
	fullText bool
	logger   *zap.Logger
}

// NewSink creates a publication sink.
func NewSink(client *Client, fullText bool, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, fullText: fullText, logger: logger}
}

func (s *Sink) Key(a Article) string { return strings.TrimSpace(a.PMID) }

func (s *Sink) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, (*Publication)(nil), "pmid", ids)
}

func (s *Sink) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, &SearchToPublication{SearchID: searchID, PMID: id})
}

// Prepare replaces PMID-only records with efetch results. PMIDs efetch does
// not return are dropped.
func (s *Sink) Prepare(ctx context.Context, recs []Article) ([]Article, error) {
	byID := make(map[string]Article, len(recs))
	for start := 0; start < len(recs); start += chunkSize {
		end := min(start+chunkSize, len(recs))
		ids := make([]string, 0, end-start)
		for _, r := range recs[start:end] {
			ids = append(ids, r.PMID)
		}

		arts, err := s.client.EFetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, a := range arts {
			byID[a.PMID] = a
		}
		s.logger.Debug("efetch chunk", zap.Int("requested", len(ids)), zap.Int("returned", len(arts)))
	}

	out := make([]Article, 0, len(byID))
	for _, r := range recs {
		if a, ok := byID[r.PMID]; ok {
			out = append(out, a)
			continue
		}
		s.logger.Warn("pmid not returned by efetch", zap.String("pmid", r.PMID))
	}
	return out, nil
}

func (s *Sink) Store(ctx context.Context, db bun.IDB, a Article) (string, error) {
	p, err := MapArticle(a)
	if err != nil {
		return "", err
	}

	if p.DOI != nil {
		owner, err := doiOwner(ctx, db, *p.DOI, p.PMID)
		if err != nil {
			return "", err
		}
		if owner != "" {
			return owner, nil
		}
	}

	if s.fullText && p.PMCID != nil {
		now := time.Now().UTC()
		body, err := s.client.FullText(ctx, *p.PMCID)
		if err != nil {
			return "", err
		}
		if body != "" {
			p.FullText = &body
		}
		p.FullTextLastChecked = &now
	}

	if err := harvest.Upsert(ctx, db, p, "pmid"); err != nil {
		return "", err
	}
	return p.PMID, nil
}

// doiOwner returns the PMID other than pmid that already holds doi.
func doiOwner(ctx context.Context, db bun.IDB, doi, pmid string) (string, error) {
	var owner string
	err := db.NewSelect().
		Model((*Publication)(nil)).
		Column("pmid").
		Where("doi = ?", doi).
		Where("pmid != ?", pmid).
		Limit(1).
		Scan(ctx, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select doi owner: %w", err)
	}
	return owner, nil
}

// NewHarvester wires the E-utilities client and sink into a harvester.
func NewHarvester(db *bun.DB, client *Client, opts HarvestOptions, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[Article] {
	return &harvest.Harvester[Article]{
		Source:   Name,
		DB:       db,
		Fetch:    client.Fetcher(opts),
		Sink:     NewSink(client, opts.FullText, logger),
		Logger:   logger,
		Recorder: rec,
	}
}

// NewPMIDHarvester stores the given PMIDs under the search term passed to Run.
func NewPMIDHarvester(db *bun.DB, client *Client, pmids []string, fullText bool, logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[Article] {
	h := NewHarvester(db, client, HarvestOptions{FullText: fullText}, logger, rec)
	h.Fetch = PMIDFetcher(pmids)
	return h
}

// HarvestYears runs one harvest per publication year from startYear to
// endYear inclusive. A failed year is logged and the rest still run.
func HarvestYears(ctx context.Context, db *bun.DB, client *Client, query string, startYear, endYear, maxPerYear int, opts HarvestOptions, logger *zap.Logger, rec harvest.Recorder) ([]harvest.Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if endYear < startYear {
		return nil, fmt.Errorf("end year %d before start year %d", endYear, startYear)
	}

	reports := make([]harvest.Report, 0, endYear-startYear+1)
	created := 0
	for year := startYear; year <= endYear; year++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		y := strconv.Itoa(year)
		opts.StartDate, opts.EndDate = y+"/01/01", y+"/12/31"

		rep, err := NewHarvester(db, client, opts, logger, rec).Run(ctx, query, maxPerYear)
		if err != nil {
			logger.Error("year harvest failed", zap.Int("year", year), zap.Error(err))
		}
		created += rep.Created
		logger.Info("year harvested", zap.Int("year", year), zap.Int("created", rep.Created), zap.Int("total_created", created))
		reports = append(reports, rep)
	}
	return reports, nil
}
