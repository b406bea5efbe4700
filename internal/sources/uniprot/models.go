package uniprot

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
)

// Protein is a UniProtKB entry keyed by primary accession.
type Protein struct {
	bun.BaseModel `bun:"table:proteins,alias:p"`

	Accession    string          `bun:"accession,pk" json:"accession"`
	EntryName    *string         `bun:"entry_name" json:"entry_name,omitempty"`
	ProteinName  *string         `bun:"protein_name" json:"protein_name,omitempty"`
	GeneName     *string         `bun:"gene_name" json:"gene_name,omitempty"`
	OrganismName *string         `bun:"organism_name" json:"organism_name,omitempty"`
	OrganismID   *int64          `bun:"organism_id" json:"organism_id,omitempty"`
	Sequence     *string         `bun:"sequence" json:"sequence,omitempty"`
	Length       *int            `bun:"length" json:"length,omitempty"`
	Mass         *int            `bun:"mass" json:"mass,omitempty"`
	Reviewed     bool            `bun:"reviewed,notnull" json:"reviewed"`
	Data         json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt    time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type SearchToProtein struct {
	bun.BaseModel `bun:"table:search_to_proteins,alias:stp"`

	SearchID  int64  `bun:"search_id,pk"`
	Accession string `bun:"accession,pk"`
}

// Schema is the UniProt database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Protein)(nil),
		(*SearchToProtein)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_proteins_gene_name", Table: "proteins", Columns: "gene_name"},
		{Name: "idx_proteins_organism_id", Table: "proteins", Columns: "organism_id"},
	},
}
