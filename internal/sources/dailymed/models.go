package dailymed

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
)

// Drug is a labeled product keyed by SPL set id.
type Drug struct {
	bun.BaseModel `bun:"table:drugs,alias:d"`

	SetID         string          `bun:"set_id,pk" json:"set_id"`
	Title         *string         `bun:"title" json:"title,omitempty"`
	SplVersion    *int            `bun:"spl_version" json:"spl_version,omitempty"`
	PublishedDate *string         `bun:"published_date" json:"published_date,omitempty"`
	LabelKey      *string         `bun:"label_key" json:"label_key,omitempty"`
	Data          json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type NDC struct {
	bun.BaseModel `bun:"table:ndcs,alias:n"`

	ID    int64  `bun:"id,pk,autoincrement"`
	SetID string `bun:"set_id,notnull"`
	NDC   string `bun:"ndc,notnull"`
}

type SearchToDrug struct {
	bun.BaseModel `bun:"table:search_to_drugs,alias:std"`

	SearchID int64  `bun:"search_id,pk"`
	SetID    string `bun:"set_id,pk"`
}

// Schema is the DailyMed database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Drug)(nil),
		(*NDC)(nil),
		(*SearchToDrug)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_ndcs_set_id", Table: "ndcs", Columns: "set_id"},
		{Name: "idx_ndcs_ndc", Table: "ndcs", Columns: "ndc"},
	},
}
