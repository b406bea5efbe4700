package pubmed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var (
	pmcidPattern = regexp.MustCompile(`PMC\d+`)
	digits       = regexp.MustCompile(`\d+`)
)

// NormalizePMCID returns v as PMC followed by digits, or "" when v holds no
// number.
func NormalizePMCID(v string) string {
	if m := pmcidPattern.FindString(v); m != "" {
		return m
	}
	if m := digits.FindString(v); m != "" {
		return "PMC" + m
	}
	return ""
}

// identifiers picks the PMCID and DOI out of an esummary record.
func identifiers(s Summary) (pmcid, doi string) {
	for _, id := range s.ArticleIDs {
		switch id.IDType {
		case "pmcid":
			if v := NormalizePMCID(id.Value); v != "" {
				pmcid = v
			}
		case "doi":
			if id.Value != "" {
				doi = id.Value
			}
		}
	}
	return pmcid, doi
}

// UpdateIdentifiers fills missing PMCIDs and DOIs of stored publications from
// esummary. Rows checked within recheck are left alone; the rest are taken
// batch at a time until none remain. A DOI already held by another PMID is
// logged and not copied. It returns how many publications gained an
// identifier.
func UpdateIdentifiers(ctx context.Context, db *bun.DB, client *Client, batch int, recheck time.Duration, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batch <= 0 {
		batch = chunkSize
	}

	// Rows marked during this call are never older than threshold.
	threshold := time.Now().UTC().Add(-recheck)
	updated, checked := 0, 0
	for {
		var pubs []Publication
		err := db.NewSelect().
			Model(&pubs).
			Column("pmid", "pmcid", "doi").
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("pmcid IS NULL").WhereOr("doi IS NULL")
			}).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("last_checked IS NULL").WhereOr("last_checked < ?", threshold)
			}).
			Order("pmid").
			Limit(batch).
			Scan(ctx)
		if err != nil {
			return updated, fmt.Errorf("select publications without identifiers: %w", err)
		}
		if len(pubs) == 0 {
			break
		}

		pmids := make([]string, len(pubs))
		for i, p := range pubs {
			pmids[i] = p.PMID
		}
		now := time.Now().UTC()
		if _, err := db.NewUpdate().
			Model((*Publication)(nil)).
			Set("last_checked = ?", now).
			Where("pmid IN (?)", bun.In(pmids)).
			Exec(ctx); err != nil {
			return updated, fmt.Errorf("mark publications checked: %w", err)
		}
		checked += len(pubs)

		sums, err := client.ESummary(ctx, pmids)
		if err != nil {
			return updated, err
		}
		for _, p := range pubs {
			s, ok := sums[p.PMID]
			if !ok {
				continue
			}
			n, err := applyIdentifiers(ctx, db, p, s, logger)
			if err != nil {
				return updated, err
			}
			if n {
				updated++
			}
		}
	}

	logger.Info("identifier update finished", zap.Int("checked", checked), zap.Int("updated", updated))
	return updated, nil
}

func applyIdentifiers(ctx context.Context, db *bun.DB, p Publication, s Summary, logger *zap.Logger) (bool, error) {
	pmcid, doi := identifiers(s)
	q := db.NewUpdate().Model((*Publication)(nil)).Where("pmid = ?", p.PMID)
	changed := false

	if p.PMCID == nil && pmcid != "" {
		q = q.Set("pmcid = ?", pmcid)
		changed = true
	}
	if p.DOI == nil && doi != "" {
		owner, err := doiOwner(ctx, db, doi)
		if err != nil {
			return false, err
		}
		if owner != "" && owner != p.PMID {
			logger.Warn("doi already stored for another publication",
				zap.String("doi", doi), zap.String("pmid", p.PMID), zap.String("owner", owner))
		} else {
			q = q.Set("doi = ?", doi)
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	q = q.Set("updated_at = ?", time.Now().UTC())
	if _, err := q.Exec(ctx); err != nil {
		return false, fmt.Errorf("update identifiers %s: %w", p.PMID, err)
	}
	return true, nil
}

func doiOwner(ctx context.Context, db bun.IDB, doi string) (string, error) {
	var pmid string
	err := db.NewSelect().
		Model((*Publication)(nil)).
		Column("pmid").
		Where("doi = ?", doi).
		Limit(1).
		Scan(ctx, &pmid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select doi %s: %w", doi, err)
	}
	return pmid, nil
}
