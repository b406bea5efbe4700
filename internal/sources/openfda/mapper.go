package openfda

import (
	"strings"
	"time"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// EventBundle is a report with its drugs and reactions.
type EventBundle struct {
	Event     *DrugEvent
	Drugs     []EventDrug
	Reactions []EventReaction
}

func joined(vals []string) *string {
	return models.StringPtr(strings.Join(vals, "|"))
}

func text(t Text) *string { return models.StringPtr(t.String()) }

// MapEvent converts a FAERS report into storage models.
func MapEvent(r EventRecord) (*EventBundle, error) {
	id := r.SafetyReportID.String()
	if id == "" {
		return nil, harvest.Invalid("event without safetyreportid")
	}

	p := r.Patient
	b := &EventBundle{Event: &DrugEvent{
		SafetyReportID:             id,
		ReceiveDate:                text(r.ReceiveDate),
		Serious:                    text(r.Serious),
		SeriousnessDeath:           text(r.SeriousnessDeath),
		SeriousnessHospitalization: text(r.SeriousnessHospitalization),
		PatientOnsetAge:            text(p.OnsetAge),
		PatientOnsetAgeUnit:        text(p.OnsetAgeUnit),
		PatientSex:                 text(p.Sex),
		PatientWeight:              text(p.Weight),
		Data:                       r.Raw,
		UpdatedAt:                  time.Now().UTC(),
	}}

	for _, d := range p.Drugs {
		b.Drugs = append(b.Drugs, EventDrug{
			SafetyReportID:       id,
			MedicinalProduct:     models.StringPtr(d.MedicinalProduct),
			DrugCharacterization: text(d.DrugCharacterization),
			DrugIndication:       models.StringPtr(d.DrugIndication),
			BrandName:            joined(d.OpenFDA.BrandName),
			GenericName:          joined(d.OpenFDA.GenericName),
			SubstanceName:        joined(d.OpenFDA.SubstanceName),
			ManufacturerName:     joined(d.OpenFDA.ManufacturerName),
		})
	}
	for _, rx := range p.Reactions {
		b.Reactions = append(b.Reactions, EventReaction{
			SafetyReportID: id,
			MeddraPT:       models.StringPtr(rx.MeddraPT),
			Outcome:        text(rx.Outcome),
		})
	}
	return b, nil
}

func labelKey(r LabelRecord) string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.SetID)
}

func MapLabel(r LabelRecord) (*DrugLabel, error) {
	id := labelKey(r)
	if id == "" {
		return nil, harvest.Invalid("label without id or set_id")
	}
	return &DrugLabel{
		ID:               id,
		SetID:            strings.TrimSpace(r.SetID),
		SplID:            models.StringPtr(r.SplID),
		BrandName:        joined(r.OpenFDA.BrandName),
		GenericName:      joined(r.OpenFDA.GenericName),
		ManufacturerName: joined(r.OpenFDA.ManufacturerName),
		EffectiveTime:    models.StringPtr(r.EffectiveTime),
		Data:             r.Raw,
		UpdatedAt:        time.Now().UTC(),
	}, nil
}

func MapNDC(r NDCRecord) (*DrugNDC, error) {
	id := strings.TrimSpace(r.ProductID)
	if id == "" {
		return nil, harvest.Invalid("ndc product without product_id")
	}
	return &DrugNDC{
		ProductID:   id,
		ProductNDC:  models.StringPtr(r.ProductNDC),
		BrandName:   models.StringPtr(r.BrandName),
		GenericName: models.StringPtr(r.GenericName),
		LabelerName: models.StringPtr(r.LabelerName),
		Finished:    r.Finished,
		DEASchedule: models.StringPtr(r.DEASchedule),
		Data:        r.Raw,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

func MapEnforcement(r EnforcementRecord) (*DrugEnforcement, error) {
	id := strings.TrimSpace(r.RecallNumber)
	if id == "" {
		return nil, harvest.Invalid("enforcement report without recall_number")
	}
	return &DrugEnforcement{
		RecallNumber:         id,
		ReasonForRecall:      models.StringPtr(r.ReasonForRecall),
		Status:               models.StringPtr(r.Status),
		DistributionPattern:  models.StringPtr(r.DistributionPattern),
		ProductDescription:   models.StringPtr(r.ProductDescription),
		RecallInitiationDate: models.StringPtr(r.RecallInitiationDate),
		Data:                 r.Raw,
		UpdatedAt:            time.Now().UTC(),
	}, nil
}

func MapApplication(r ApplicationRecord) (*DrugAtFDA, error) {
	id := strings.TrimSpace(r.ApplicationNumber)
	if id == "" {
		return nil, harvest.Invalid("application without application_number")
	}
	products := r.Products
	if len(products) == 0 {
		products = []byte("[]")
	}
	return &DrugAtFDA{
		ApplicationNumber: id,
		SponsorName:       models.StringPtr(r.SponsorName),
		Products:          products,
		Data:              r.Raw,
		UpdatedAt:         time.Now().UTC(),
	}, nil
}
