package openfda

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
)

// DrugEvent is a FAERS report keyed by safety report id.
type DrugEvent struct {
	bun.BaseModel `bun:"table:drug_events,alias:de"`

	SafetyReportID             string          `bun:"safetyreportid,pk" json:"safetyreportid"`
	ReceiveDate                *string         `bun:"receivedate" json:"receivedate,omitempty"`
	Serious                    *string         `bun:"serious" json:"serious,omitempty"`
	SeriousnessDeath           *string         `bun:"seriousnessdeath" json:"seriousnessdeath,omitempty"`
	SeriousnessHospitalization *string         `bun:"seriousnesshospitalization" json:"seriousnesshospitalization,omitempty"`
	PatientOnsetAge            *string         `bun:"patient_onsetage" json:"patient_onsetage,omitempty"`
	PatientOnsetAgeUnit        *string         `bun:"patient_onsetageunit" json:"patient_onsetageunit,omitempty"`
	PatientSex                 *string         `bun:"patient_sex" json:"patient_sex,omitempty"`
	PatientWeight              *string         `bun:"patient_weight" json:"patient_weight,omitempty"`
	Data                       json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt                  time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// EventDrug is a drug named in a report. Annotation lists are joined with "|".
type EventDrug struct {
	bun.BaseModel `bun:"table:drug_event_drugs,alias:ded"`

	ID                   int64   `bun:"id,pk,autoincrement"`
	SafetyReportID       string  `bun:"safetyreportid,notnull"`
	MedicinalProduct     *string `bun:"medicinalproduct"`
	DrugCharacterization *string `bun:"drugcharacterization"`
	DrugIndication       *string `bun:"drugindication"`
	BrandName            *string `bun:"brand_name"`
	GenericName          *string `bun:"generic_name"`
	SubstanceName        *string `bun:"substance_name"`
	ManufacturerName     *string `bun:"manufacturer_name"`
}

type EventReaction struct {
	bun.BaseModel `bun:"table:drug_event_reactions,alias:der"`

	ID             int64   `bun:"id,pk,autoincrement"`
	SafetyReportID string  `bun:"safetyreportid,notnull"`
	MeddraPT       *string `bun:"reactionmeddrapt"`
	Outcome        *string `bun:"reactionoutcome"`
}

type SearchToEvent struct {
	bun.BaseModel `bun:"table:search_to_events,alias:ste"`

	SearchID       int64  `bun:"search_id,pk"`
	SafetyReportID string `bun:"safetyreportid,pk"`
}

// DrugLabel is keyed by the label document id, falling back to set id.
type DrugLabel struct {
	bun.BaseModel `bun:"table:drug_labels,alias:dl"`

	ID               string          `bun:"id,pk" json:"id"`
	SetID            string          `bun:"set_id,notnull" json:"set_id"`
	SplID            *string         `bun:"spl_id" json:"spl_id,omitempty"`
	BrandName        *string         `bun:"brand_name" json:"brand_name,omitempty"`
	GenericName      *string         `bun:"generic_name" json:"generic_name,omitempty"`
	ManufacturerName *string         `bun:"manufacturer_name" json:"manufacturer_name,omitempty"`
	EffectiveTime    *string         `bun:"effective_time" json:"effective_time,omitempty"`
	Data             json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt        time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type SearchToLabel struct {
	bun.BaseModel `bun:"table:search_to_labels,alias:stl"`

	SearchID int64  `bun:"search_id,pk"`
	LabelID  string `bun:"label_id,pk"`
}

type DrugNDC struct {
	bun.BaseModel `bun:"table:drug_ndcs,alias:dn"`

	ProductID   string          `bun:"product_id,pk" json:"product_id"`
	ProductNDC  *string         `bun:"product_ndc" json:"product_ndc,omitempty"`
	BrandName   *string         `bun:"brand_name" json:"brand_name,omitempty"`
	GenericName *string         `bun:"generic_name" json:"generic_name,omitempty"`
	LabelerName *string         `bun:"labeler_name" json:"labeler_name,omitempty"`
	Finished    *bool           `bun:"finished" json:"finished,omitempty"`
	DEASchedule *string         `bun:"dea_schedule" json:"dea_schedule,omitempty"`
	Data        json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type SearchToNDC struct {
	bun.BaseModel `bun:"table:search_to_ndcs,alias:stn"`

	SearchID  int64  `bun:"search_id,pk"`
	ProductID string `bun:"product_id,pk"`
}

type DrugEnforcement struct {
	bun.BaseModel `bun:"table:drug_enforcements,alias:den"`

	RecallNumber         string          `bun:"recall_number,pk" json:"recall_number"`
	ReasonForRecall      *string         `bun:"reason_for_recall" json:"reason_for_recall,omitempty"`
	Status               *string         `bun:"status" json:"status,omitempty"`
	DistributionPattern  *string         `bun:"distribution_pattern" json:"distribution_pattern,omitempty"`
	ProductDescription   *string         `bun:"product_description" json:"product_description,omitempty"`
	RecallInitiationDate *string         `bun:"recall_initiation_date" json:"recall_initiation_date,omitempty"`
	Data                 json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt            time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type SearchToEnforcement struct {
	bun.BaseModel `bun:"table:search_to_enforcements,alias:sten"`

	SearchID     int64  `bun:"search_id,pk"`
	RecallNumber string `bun:"recall_number,pk"`
}

// DrugAtFDA is a Drugs@FDA application with its product list kept as JSON.
type DrugAtFDA struct {
	bun.BaseModel `bun:"table:drugs_at_fda,alias:daf"`

	ApplicationNumber string          `bun:"application_number,pk" json:"application_number"`
	SponsorName       *string         `bun:"sponsor_name" json:"sponsor_name,omitempty"`
	Products          json.RawMessage `bun:"products,type:json" json:"products,omitempty"`
	Data              json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt         time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type SearchToDrugsFDA struct {
	bun.BaseModel `bun:"table:search_to_drugs_at_fda,alias:stdf"`

	SearchID          int64  `bun:"search_id,pk"`
	ApplicationNumber string `bun:"application_number,pk"`
}

// Schema is the OpenFDA database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*DrugEvent)(nil),
		(*EventDrug)(nil),
		(*EventReaction)(nil),
		(*SearchToEvent)(nil),
		(*DrugLabel)(nil),
		(*SearchToLabel)(nil),
		(*DrugNDC)(nil),
		(*SearchToNDC)(nil),
		(*DrugEnforcement)(nil),
		(*SearchToEnforcement)(nil),
		(*DrugAtFDA)(nil),
		(*SearchToDrugsFDA)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_drug_event_drugs_report", Table: "drug_event_drugs", Columns: "safetyreportid"},
		{Name: "idx_drug_event_reactions_report", Table: "drug_event_reactions", Columns: "safetyreportid"},
		{Name: "idx_drug_event_reactions_pt", Table: "drug_event_reactions", Columns: "reactionmeddrapt"},
		{Name: "idx_drug_labels_set_id", Table: "drug_labels", Columns: "set_id"},
		{Name: "idx_drug_ndcs_product_ndc", Table: "drug_ndcs", Columns: "product_ndc"},
	},
}
