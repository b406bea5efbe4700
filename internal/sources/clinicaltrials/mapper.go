package clinicaltrials

import (
	"strings"
	"time"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// Bundle is a trial with every child collection it owns.
type Bundle struct {
	Trial         *Trial
	Organizations []Organization
	Conditions    []Condition
	Keywords      []Keyword
	Interventions []Intervention
	Outcomes      []Outcome
	Locations     []Location
	References    []Reference
	Eligibility   []Eligibility
	AdverseEvents []AdverseEvent
}

// ParseDate accepts the full and month-precision dates the registry uses.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// MapStudy converts a study record into storage models.
func MapStudy(s Study) (*Bundle, error) {
	p := s.Protocol
	id := strings.TrimSpace(p.Identification.NctID)
	if !strings.HasPrefix(id, "NCT") {
		return nil, harvest.Invalid("unexpected nct id %q", p.Identification.NctID)
	}

	trial := &Trial{
		NctID:                 id,
		BriefTitle:            models.StringPtr(p.Identification.BriefTitle),
		OfficialTitle:         models.StringPtr(p.Identification.OfficialTitle),
		Acronym:               models.StringPtr(p.Identification.Acronym),
		OverallStatus:         models.StringPtr(p.Status.OverallStatus),
		StartDate:             ParseDate(p.Status.StartDate.Date),
		PrimaryCompletionDate: ParseDate(p.Status.PrimaryCompletionDate.Date),
		CompletionDate:        ParseDate(p.Status.CompletionDate.Date),
		Enrollment:            p.Design.EnrollmentInfo.Count,
		StudyType:             models.StringPtr(p.Design.StudyType),
		Phases:                models.StringArray(p.Design.Phases),
		BriefSummary:          models.StringPtr(p.Description.BriefSummary),
		DetailedDescription:   models.StringPtr(p.Description.DetailedDescription),
		HasResults:            s.HasResults,
		Data:                  s.Raw,
		UpdatedAt:             time.Now().UTC(),
	}

	b := &Bundle{Trial: trial}

	if lead := p.Sponsors.LeadSponsor; lead != nil && lead.Name != "" {
		b.Organizations = append(b.Organizations, Organization{NctID: id, Name: lead.Name, Class: models.StringPtr(lead.Class), Role: "sponsor"})
	}
	for _, c := range p.Sponsors.Collaborators {
		if c.Name == "" {
			continue
		}
		b.Organizations = append(b.Organizations, Organization{NctID: id, Name: c.Name, Class: models.StringPtr(c.Class), Role: "collaborator"})
	}

	for _, c := range p.Conditions.Conditions {
		if c = strings.TrimSpace(c); c != "" {
			b.Conditions = append(b.Conditions, Condition{NctID: id, Name: c})
		}
	}
	for _, k := range p.Conditions.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			b.Keywords = append(b.Keywords, Keyword{NctID: id, Value: k})
		}
	}

	for _, iv := range p.ArmsInterventions.Interventions {
		if iv.Name == "" {
			continue
		}
		b.Interventions = append(b.Interventions, Intervention{
			NctID:       id,
			Type:        models.StringPtr(iv.Type),
			Name:        iv.Name,
			Description: models.StringPtr(iv.Description),
		})
	}

	addOutcomes := func(kind string, outs []OutcomeRecord) {
		for _, o := range outs {
			if o.Measure == "" {
				continue
			}
			b.Outcomes = append(b.Outcomes, Outcome{
				NctID:       id,
				Kind:        kind,
				Measure:     o.Measure,
				Description: models.StringPtr(o.Description),
				TimeFrame:   models.StringPtr(o.TimeFrame),
			})
		}
	}
	addOutcomes("primary", p.Outcomes.Primary)
	addOutcomes("secondary", p.Outcomes.Secondary)

	for _, l := range p.Locations.Locations {
		loc := Location{
			NctID:    id,
			Facility: models.StringPtr(l.Facility),
			City:     models.StringPtr(l.City),
			State:    models.StringPtr(l.State),
			Country:  models.StringPtr(l.Country),
		}
		if l.GeoPoint != nil {
			lat, lon := l.GeoPoint.Lat, l.GeoPoint.Lon
			loc.Latitude, loc.Longitude = &lat, &lon
		}
		b.Locations = append(b.Locations, loc)
	}

	for _, r := range p.References.References {
		b.References = append(b.References, Reference{
			NctID:    id,
			PMID:     models.StringPtr(r.PMID),
			Type:     models.StringPtr(r.Type),
			Citation: models.StringPtr(r.Citation),
		})
	}

	if e := p.Eligibility; e != nil {
		b.Eligibility = []Eligibility{{
			NctID:             id,
			Criteria:          models.StringPtr(e.Criteria),
			HealthyVolunteers: e.HealthyVolunteers,
			Sex:               models.StringPtr(e.Sex),
			MinimumAge:        models.StringPtr(e.MinimumAge),
			MaximumAge:        models.StringPtr(e.MaximumAge),
			StdAges:           models.StringArray(e.StdAges),
		}}
	}

	if s.Results != nil && s.Results.AdverseEvents != nil {
		ae := s.Results.AdverseEvents
		b.AdverseEvents = append(b.AdverseEvents, mapAdverseEvents(id, true, ae.SeriousEvents)...)
		b.AdverseEvents = append(b.AdverseEvents, mapAdverseEvents(id, false, ae.OtherEvents)...)
	}

	return b, nil
}

func mapAdverseEvents(nctID string, serious bool, recs []AdverseEventRecord) []AdverseEvent {
	out := make([]AdverseEvent, 0, len(recs))
	for _, r := range recs {
		if r.Term == "" {
			continue
		}
		ev := AdverseEvent{NctID: nctID, Term: r.Term, OrganSystem: models.StringPtr(r.OrganSystem), Serious: serious}
		for _, st := range r.Stats {
			if st.NumEvents != nil {
				ev.NumEvents += *st.NumEvents
			}
			if st.NumAffected != nil {
				ev.NumAffected += *st.NumAffected
			}
			if st.NumAtRisk != nil {
				ev.NumAtRisk += *st.NumAtRisk
			}
		}
		out = append(out, ev)
	}
	return out
}
