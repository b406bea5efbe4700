package geo

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
)

// GSE is a row of the gse table in the GEOmetadb dump. Only the columns we
// copy are mapped.
type GSE struct {
	bun.BaseModel `bun:"table:gse"`

	GSE            string  `bun:"gse"`
	Title          *string `bun:"title"`
	Summary        *string `bun:"summary"`
	Type           *string `bun:"type"`
	PubmedID       *string `bun:"pubmed_id"`
	SubmissionDate *string `bun:"submission_date"`
	Contributor    *string `bun:"contributor"`
}

// Series is a GEO series keyed by GSE accession.
type Series struct {
	bun.BaseModel `bun:"table:series,alias:s"`

	GSE            string     `bun:"gse,pk" json:"gse"`
	Title          *string    `bun:"title" json:"title,omitempty"`
	Summary        *string    `bun:"summary" json:"summary,omitempty"`
	Type           *string    `bun:"type" json:"type,omitempty"`
	PubmedID       *string    `bun:"pubmed_id" json:"pubmed_id,omitempty"`
	SubmissionDate *time.Time `bun:"submission_date" json:"submission_date,omitempty"`
	Contributor    *string    `bun:"contributor" json:"contributor,omitempty"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

type SearchToSeries struct {
	bun.BaseModel `bun:"table:search_to_series,alias:sts"`

	SearchID int64  `bun:"search_id,pk"`
	GSE      string `bun:"gse,pk"`
}

// Schema is the GEO database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Series)(nil),
		(*SearchToSeries)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_series_pubmed_id", Table: "series", Columns: "pubmed_id"},
	},
}
