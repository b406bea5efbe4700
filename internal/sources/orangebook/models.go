package orangebook

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
)

// Product is one approved drug product, keyed by application type, number
// and product number. Dates keep the FDA text format.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ApplType          string    `bun:"appl_type,pk" json:"appl_type"`
	ApplNo            string    `bun:"appl_no,pk" json:"appl_no"`
	ProductNo         string    `bun:"product_no,pk" json:"product_no"`
	Ingredient        *string   `bun:"ingredient" json:"ingredient,omitempty"`
	DFRoute           *string   `bun:"df_route" json:"df_route,omitempty"`
	TradeName         *string   `bun:"trade_name" json:"trade_name,omitempty"`
	Applicant         *string   `bun:"applicant" json:"applicant,omitempty"`
	Strength          *string   `bun:"strength" json:"strength,omitempty"`
	TECode            *string   `bun:"te_code" json:"te_code,omitempty"`
	ApprovalDate      *string   `bun:"approval_date" json:"approval_date,omitempty"`
	RLD               *string   `bun:"rld" json:"rld,omitempty"`
	RS                *string   `bun:"rs" json:"rs,omitempty"`
	Type              *string   `bun:"type" json:"type,omitempty"`
	ApplicantFullName *string   `bun:"applicant_full_name" json:"applicant_full_name,omitempty"`
	UpdatedAt         time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Patent is a patent listed against a product.
type Patent struct {
	bun.BaseModel `bun:"table:patents,alias:pt"`

	ID                   int64   `bun:"id,pk,autoincrement" json:"-"`
	ApplType             string  `bun:"appl_type,notnull" json:"appl_type"`
	ApplNo               string  `bun:"appl_no,notnull" json:"appl_no"`
	ProductNo            string  `bun:"product_no,notnull" json:"product_no"`
	PatentNo             string  `bun:"patent_no,notnull" json:"patent_no"`
	PatentExpireDateText *string `bun:"patent_expire_date_text" json:"patent_expire_date_text,omitempty"`
	DrugSubstanceFlag    *string `bun:"drug_substance_flag" json:"drug_substance_flag,omitempty"`
	DrugProductFlag      *string `bun:"drug_product_flag" json:"drug_product_flag,omitempty"`
	PatentUseCode        *string `bun:"patent_use_code" json:"patent_use_code,omitempty"`
	DelistFlag           *string `bun:"delist_flag" json:"delist_flag,omitempty"`
	SubmissionDate       *string `bun:"submission_date" json:"submission_date,omitempty"`
}

// Exclusivity is a marketing exclusivity granted to a product.
type Exclusivity struct {
	bun.BaseModel `bun:"table:exclusivity,alias:ex"`

	ID              int64   `bun:"id,pk,autoincrement" json:"-"`
	ApplType        string  `bun:"appl_type,notnull" json:"appl_type"`
	ApplNo          string  `bun:"appl_no,notnull" json:"appl_no"`
	ProductNo       string  `bun:"product_no,notnull" json:"product_no"`
	ExclusivityCode *string `bun:"exclusivity_code" json:"exclusivity_code,omitempty"`
	ExclusivityDate *string `bun:"exclusivity_date" json:"exclusivity_date,omitempty"`
}

// Schema is the Orange Book database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Product)(nil),
		(*Patent)(nil),
		(*Exclusivity)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_products_ingredient", Table: "products", Columns: "ingredient"},
		{Name: "idx_patents_product", Table: "patents", Columns: "appl_type, appl_no, product_no"},
		{Name: "idx_exclusivity_product", Table: "exclusivity", Columns: "appl_type, appl_no, product_no"},
	},
}
