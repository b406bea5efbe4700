package rxnav

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
)

// Drug is an RxNorm concept keyed by RxCUI.
type Drug struct {
	bun.BaseModel `bun:"table:drugs,alias:d"`

	RxCUI     string    `bun:"rxcui,pk" json:"rxcui"`
	Name      *string   `bun:"name" json:"name,omitempty"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Class is an RxClass concept such as a mechanism of action or an
// established pharmacologic class. Classes are shared between drugs.
type Class struct {
	bun.BaseModel `bun:"table:classes,alias:c"`

	ClassID string  `bun:"class_id,pk" json:"class_id"`
	Name    *string `bun:"name" json:"name,omitempty"`
	Type    *string `bun:"type" json:"type,omitempty"`
}

type DrugClass struct {
	bun.BaseModel `bun:"table:drug_classes,alias:dc"`

	ID       int64   `bun:"id,pk,autoincrement"`
	RxCUI    string  `bun:"rxcui,notnull"`
	ClassID  string  `bun:"class_id,notnull"`
	Relation string  `bun:"relation,notnull"`
	Source   *string `bun:"source"`
}

type SearchToDrug struct {
	bun.BaseModel `bun:"table:search_to_drugs,alias:std"`

	SearchID int64  `bun:"search_id,pk"`
	RxCUI    string `bun:"rxcui,pk"`
}

// Schema is the RxNav database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Drug)(nil),
		(*Class)(nil),
		(*DrugClass)(nil),
		(*SearchToDrug)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_drug_classes_rxcui", Table: "drug_classes", Columns: "rxcui"},
		{Name: "idx_drug_classes_class_id", Table: "drug_classes", Columns: "class_id"},
	},
}
