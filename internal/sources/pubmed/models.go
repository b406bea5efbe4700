package pubmed

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// Publication is a PubMed article keyed by PMID.
type Publication struct {
	bun.BaseModel `bun:"table:publications,alias:pub"`

	PMID                string             `bun:"pmid,pk" json:"pmid"`
	PMCID               *string            `bun:"pmcid" json:"pmcid,omitempty"`
	DOI                 *string            `bun:"doi" json:"doi,omitempty"`
	Title               string             `bun:"title,notnull" json:"title"`
	Abstract            *string            `bun:"abstract" json:"abstract,omitempty"`
	Authors             models.StringArray `bun:"authors,type:text" json:"authors"`
	Affiliations        models.StringArray `bun:"affiliations,type:text" json:"affiliations"`
	Journal             *string            `bun:"journal" json:"journal,omitempty"`
	PubDate             *time.Time         `bun:"pub_date" json:"pub_date,omitempty"`
	PublicationTypes    models.StringArray `bun:"publication_types,type:text" json:"publication_types"`
	Languages           models.StringArray `bun:"languages,type:text" json:"languages"`
	Copyright           *string            `bun:"copyright_information" json:"copyright_information,omitempty"`
	MeshTerms           models.StringArray `bun:"mesh_terms,type:text" json:"mesh_terms"`
	Keywords            models.StringArray `bun:"keywords,type:text" json:"keywords"`
	FullText            *string            `bun:"full_text" json:"full_text,omitempty"`
	FullTextLastChecked *time.Time         `bun:"full_text_last_checked" json:"full_text_last_checked,omitempty"`
	// LastChecked is when esummary was last asked for a missing PMCID or DOI.
	LastChecked         *time.Time         `bun:"last_checked" json:"last_checked,omitempty"`
	UpdatedAt           time.Time          `bun:"updated_at,notnull" json:"updated_at"`
}

type SearchToPublication struct {
	bun.BaseModel `bun:"table:search_to_publications,alias:stp"`

	SearchID int64  `bun:"search_id,pk"`
	PMID     string `bun:"pmid,pk"`
}

// Schema is the PubMed database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Publication)(nil),
		(*SearchToPublication)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_publications_doi", Table: "publications", Columns: "doi", Unique: true},
		{Name: "idx_publications_pmcid", Table: "publications", Columns: "pmcid"},
		{Name: "idx_publications_pub_date", Table: "publications", Columns: "pub_date"},
		{Name: "idx_publications_last_checked", Table: "publications", Columns: "last_checked"},
	},
}
