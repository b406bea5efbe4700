package openfda

import (
	"encoding/json"
	"strings"
)

// SearchResponse is one page of any drug endpoint.
type SearchResponse[R any] struct {
	Meta struct {
		Results struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []R `json:"results"`
}

// Text accepts a JSON string or a bare number. FAERS fields switch between
// the two.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*t = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = Text(v)
	default:
		*t = Text(s)
	}
	return nil
}

func (t Text) String() string { return strings.TrimSpace(string(t)) }

// Annotation is the harmonized "openfda" block attached to records.
type Annotation struct {
	BrandName        []string `json:"brand_name"`
	GenericName      []string `json:"generic_name"`
	SubstanceName    []string `json:"substance_name"`
	ManufacturerName []string `json:"manufacturer_name"`
}

// EventRecord is a FAERS adverse event report.
type EventRecord struct {
	SafetyReportID             Text `json:"safetyreportid"`
	ReceiveDate                Text `json:"receivedate"`
	Serious                    Text `json:"serious"`
	SeriousnessDeath           Text `json:"seriousnessdeath"`
	SeriousnessHospitalization Text `json:"seriousnesshospitalization"`
	Patient                    struct {
		OnsetAge     Text              `json:"patientonsetage"`
		OnsetAgeUnit Text              `json:"patientonsetageunit"`
		Sex          Text              `json:"patientsex"`
		Weight       Text              `json:"patientweight"`
		Drugs        []EventDrugRecord `json:"drug"`
		Reactions    []ReactionRecord  `json:"reaction"`
	} `json:"patient"`

	Raw json.RawMessage `json:"-"`
}

func (r *EventRecord) UnmarshalJSON(b []byte) error {
	type plain EventRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = EventRecord(p)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type EventDrugRecord struct {
	MedicinalProduct     string     `json:"medicinalproduct"`
	DrugCharacterization Text       `json:"drugcharacterization"`
	DrugIndication       string     `json:"drugindication"`
	OpenFDA              Annotation `json:"openfda"`
}

type ReactionRecord struct {
	MeddraPT string `json:"reactionmeddrapt"`
	Outcome  Text   `json:"reactionoutcome"`
}

// LabelRecord is a structured product label.
type LabelRecord struct {
	ID            string     `json:"id"`
	SetID         string     `json:"set_id"`
	SplID         string     `json:"spl_id"`
	EffectiveTime string     `json:"effective_time"`
	OpenFDA       Annotation `json:"openfda"`

	Raw json.RawMessage `json:"-"`
}

func (r *LabelRecord) UnmarshalJSON(b []byte) error {
	type plain LabelRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = LabelRecord(p)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// NDCRecord is an NDC directory product.
type NDCRecord struct {
	ProductID   string `json:"product_id"`
	ProductNDC  string `json:"product_ndc"`
	BrandName   string `json:"brand_name"`
	GenericName string `json:"generic_name"`
	LabelerName string `json:"labeler_name"`
	Finished    *bool  `json:"finished"`
	DEASchedule string `json:"dea_schedule"`

	Raw json.RawMessage `json:"-"`
}

func (r *NDCRecord) UnmarshalJSON(b []byte) error {
	type plain NDCRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = NDCRecord(p)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// EnforcementRecord is a recall enforcement report.
type EnforcementRecord struct {
	RecallNumber         string `json:"recall_number"`
	ReasonForRecall      string `json:"reason_for_recall"`
	Status               string `json:"status"`
	DistributionPattern  string `json:"distribution_pattern"`
	ProductDescription   string `json:"product_description"`
	RecallInitiationDate string `json:"recall_initiation_date"`

	Raw json.RawMessage `json:"-"`
}

func (r *EnforcementRecord) UnmarshalJSON(b []byte) error {
	type plain EnforcementRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = EnforcementRecord(p)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// ApplicationRecord is a Drugs@FDA application.
type ApplicationRecord struct {
	ApplicationNumber string          `json:"application_number"`
	SponsorName       string          `json:"sponsor_name"`
	Products          json.RawMessage `json:"products"`

	Raw json.RawMessage `json:"-"`
}

func (r *ApplicationRecord) UnmarshalJSON(b []byte) error {
	type plain ApplicationRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = ApplicationRecord(p)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}
