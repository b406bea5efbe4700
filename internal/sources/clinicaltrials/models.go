package clinicaltrials

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// Trial is a registered study keyed by NCT number.
type Trial struct {
	bun.BaseModel `bun:"table:clinical_trials,alias:ct"`

	NctID                 string             `bun:"nct_id,pk" json:"nct_id"`
	BriefTitle            *string            `bun:"brief_title" json:"brief_title,omitempty"`
	OfficialTitle         *string            `bun:"official_title" json:"official_title,omitempty"`
	Acronym               *string            `bun:"acronym" json:"acronym,omitempty"`
	OverallStatus         *string            `bun:"overall_status" json:"overall_status,omitempty"`
	StartDate             *time.Time         `bun:"start_date" json:"start_date,omitempty"`
	PrimaryCompletionDate *time.Time         `bun:"primary_completion_date" json:"primary_completion_date,omitempty"`
	CompletionDate        *time.Time         `bun:"completion_date" json:"completion_date,omitempty"`
	Enrollment            *int               `bun:"enrollment" json:"enrollment,omitempty"`
	StudyType             *string            `bun:"study_type" json:"study_type,omitempty"`
	Phases                models.StringArray `bun:"phases,type:text" json:"phases"`
	BriefSummary          *string            `bun:"brief_summary" json:"brief_summary,omitempty"`
	DetailedDescription   *string            `bun:"detailed_description" json:"detailed_description,omitempty"`
	HasResults            bool               `bun:"has_results,notnull" json:"has_results"`
	Data                  json.RawMessage    `bun:"data,type:json" json:"-"`
	UpdatedAt             time.Time          `bun:"updated_at,notnull" json:"updated_at"`
}

// Organization is a lead sponsor or collaborator.
type Organization struct {
	bun.BaseModel `bun:"table:trial_organizations,alias:tor"`

	ID    int64   `bun:"id,pk,autoincrement"`
	NctID string  `bun:"nct_id,notnull"`
	Name  string  `bun:"name,notnull"`
	Class *string `bun:"class"`
	Role  string  `bun:"role,notnull"`
}

type Condition struct {
	bun.BaseModel `bun:"table:trial_conditions,alias:tc"`

	ID    int64  `bun:"id,pk,autoincrement"`
	NctID string `bun:"nct_id,notnull"`
	Name  string `bun:"name,notnull"`
}

type Keyword struct {
	bun.BaseModel `bun:"table:trial_keywords,alias:tk"`

	ID    int64  `bun:"id,pk,autoincrement"`
	NctID string `bun:"nct_id,notnull"`
	Value string `bun:"value,notnull"`
}

type Intervention struct {
	bun.BaseModel `bun:"table:trial_interventions,alias:ti"`

	ID          int64   `bun:"id,pk,autoincrement"`
	NctID       string  `bun:"nct_id,notnull"`
	Type        *string `bun:"type"`
	Name        string  `bun:"name,notnull"`
	Description *string `bun:"description"`
}

// Outcome is a primary or secondary outcome measure.
type Outcome struct {
	bun.BaseModel `bun:"table:trial_outcomes,alias:tout"`

	ID          int64   `bun:"id,pk,autoincrement"`
	NctID       string  `bun:"nct_id,notnull"`
	Kind        string  `bun:"kind,notnull"`
	Measure     string  `bun:"measure,notnull"`
	Description *string `bun:"description"`
	TimeFrame   *string `bun:"time_frame"`
}

type Location struct {
	bun.BaseModel `bun:"table:trial_locations,alias:tl"`

	ID        int64    `bun:"id,pk,autoincrement"`
	NctID     string   `bun:"nct_id,notnull"`
	Facility  *string  `bun:"facility"`
	City      *string  `bun:"city"`
	State     *string  `bun:"state"`
	Country   *string  `bun:"country"`
	Latitude  *float64 `bun:"latitude"`
	Longitude *float64 `bun:"longitude"`
}

type Reference struct {
	bun.BaseModel `bun:"table:trial_references,alias:tref"`

	ID       int64   `bun:"id,pk,autoincrement"`
	NctID    string  `bun:"nct_id,notnull"`
	PMID     *string `bun:"pmid"`
	Type     *string `bun:"type"`
	Citation *string `bun:"citation"`
}

// Eligibility is the has-one eligibility block of a trial.
type Eligibility struct {
	bun.BaseModel `bun:"table:trial_eligibility,alias:te"`

	NctID             string             `bun:"nct_id,pk"`
	Criteria          *string            `bun:"criteria"`
	HealthyVolunteers *bool              `bun:"healthy_volunteers"`
	Sex               *string            `bun:"sex"`
	MinimumAge        *string            `bun:"minimum_age"`
	MaximumAge        *string            `bun:"maximum_age"`
	StdAges           models.StringArray `bun:"std_ages,type:text"`
}

// AdverseEvent aggregates one reported event term over all result groups.
type AdverseEvent struct {
	bun.BaseModel `bun:"table:trial_adverse_events,alias:tae"`

	ID          int64   `bun:"id,pk,autoincrement"`
	NctID       string  `bun:"nct_id,notnull"`
	Term        string  `bun:"term,notnull"`
	OrganSystem *string `bun:"organ_system"`
	Serious     bool    `bun:"serious,notnull"`
	NumEvents   int     `bun:"num_events,notnull"`
	NumAffected int     `bun:"num_affected,notnull"`
	NumAtRisk   int     `bun:"num_at_risk,notnull"`
}

type SearchToTrial struct {
	bun.BaseModel `bun:"table:search_to_trial,alias:stt"`

	SearchID int64  `bun:"search_id,pk"`
	NctID    string `bun:"nct_id,pk"`
}

// Schema is the ClinicalTrials.gov database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Trial)(nil),
		(*Organization)(nil),
		(*Condition)(nil),
		(*Keyword)(nil),
		(*Intervention)(nil),
		(*Outcome)(nil),
		(*Location)(nil),
		(*Reference)(nil),
		(*Eligibility)(nil),
		(*AdverseEvent)(nil),
		(*SearchToTrial)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_clinical_trials_status", Table: "clinical_trials", Columns: "overall_status"},
		{Name: "idx_trial_conditions_nct_id", Table: "trial_conditions", Columns: "nct_id"},
		{Name: "idx_trial_conditions_name", Table: "trial_conditions", Columns: "name"},
		{Name: "idx_trial_interventions_nct_id", Table: "trial_interventions", Columns: "nct_id"},
		{Name: "idx_trial_references_pmid", Table: "trial_references", Columns: "pmid"},
	},
}

