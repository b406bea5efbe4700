package pubmed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

var listColumns = []string{"pmid", "pmcid", "doi", "title", "journal", "pub_date"}

func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// FindByKeyword returns publications whose title or abstract contains
// keyword, newest first. limit <= 0 returns every match.
func FindByKeyword(ctx context.Context, db bun.IDB, keyword string, limit int) ([]Publication, error) {
	p := likePattern(keyword)
	var pubs []Publication
	q := db.NewSelect().
		Model(&pubs).
		Column(listColumns...).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where(`title LIKE ? ESCAPE '\'`, p).
				WhereOr(`abstract LIKE ? ESCAPE '\'`, p)
		}).
		OrderExpr("pub_date DESC, pmid")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select publications by keyword: %w", err)
	}
	return pubs, nil
}

// PublicationsForSearch returns the publications linked to the search term
// that query normalizes to.
func PublicationsForSearch(ctx context.Context, db bun.IDB, query string) ([]Publication, error) {
	var pubs []Publication
	err := db.NewSelect().
		Model(&pubs).
		ColumnExpr("pub.pmid, pub.pmcid, pub.doi, pub.title, pub.journal, pub.pub_date").
		Join("JOIN search_to_publications AS stp ON stp.pmid = pub.pmid").
		Join("JOIN search_terms AS st ON st.id = stp.search_id").
		Where("st.term = ?", harvest.Normalize(query)).
		OrderExpr("pub.pub_date DESC, pub.pmid").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select publications for search: %w", err)
	}
	return pubs, nil
}

// DatabaseSummary describes the contents of a PubMed database.
type DatabaseSummary struct {
	Publications int
	SearchTerms  int
	WithFullText int
	Earliest     *time.Time
	Latest       *time.Time
}

// FullTextShare is the fraction of publications that have body text.
func (s DatabaseSummary) FullTextShare() float64 {
	if s.Publications == 0 {
		return 0
	}
	return float64(s.WithFullText) / float64(s.Publications)
}

// Summarize reports the size and date range of the database.
func Summarize(ctx context.Context, db bun.IDB) (DatabaseSummary, error) {
	var (
		s   DatabaseSummary
		err error
	)
	if s.Publications, err = db.NewSelect().Model((*Publication)(nil)).Count(ctx); err != nil {
		return s, fmt.Errorf("count publications: %w", err)
	}
	if s.SearchTerms, err = db.NewSelect().Model((*models.SearchTerm)(nil)).Count(ctx); err != nil {
		return s, fmt.Errorf("count search terms: %w", err)
	}
	if s.WithFullText, err = db.NewSelect().Model((*Publication)(nil)).Where("full_text IS NOT NULL").Count(ctx); err != nil {
		return s, fmt.Errorf("count full text: %w", err)
	}
	if s.Publications == 0 {
		return s, nil
	}

	if s.Earliest, err = pubDate(ctx, db, "pub_date"); err != nil {
		return s, err
	}
	if s.Latest, err = pubDate(ctx, db, "pub_date DESC"); err != nil {
		return s, err
	}
	return s, nil
}

// pubDate returns the first publication date in order, or nil when no
// publication has one.
func pubDate(ctx context.Context, db bun.IDB, order string) (*time.Time, error) {
	var p Publication
	err := db.NewSelect().
		Model(&p).
		Column("pub_date").
		Where("pub_date IS NOT NULL").
		OrderExpr(order).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select publication date: %w", err)
	}
	return p.PubDate, nil
}
