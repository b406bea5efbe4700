package clinicaltrials

import "encoding/json"

// StudiesResponse is one page of the v2 studies endpoint.
type StudiesResponse struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
	TotalCount    *int    `json:"totalCount"`
}

// Study is one study record. Raw keeps the original payload.
type Study struct {
	Protocol   Protocol `json:"protocolSection"`
	Results    *Results `json:"resultsSection"`
	HasResults bool     `json:"hasResults"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the study and keeps its raw bytes.
func (s *Study) UnmarshalJSON(b []byte) error {
	type plain Study
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = Study(p)
	s.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type Protocol struct {
	Identification struct {
		NctID         string `json:"nctId"`
		BriefTitle    string `json:"briefTitle"`
		OfficialTitle string `json:"officialTitle"`
		Acronym       string `json:"acronym"`
	} `json:"identificationModule"`
	Status struct {
		OverallStatus         string     `json:"overallStatus"`
		StartDate             DateStruct `json:"startDateStruct"`
		PrimaryCompletionDate DateStruct `json:"primaryCompletionDateStruct"`
		CompletionDate        DateStruct `json:"completionDateStruct"`
	} `json:"statusModule"`
	Sponsors struct {
		LeadSponsor   *OrganizationRecord  `json:"leadSponsor"`
		Collaborators []OrganizationRecord `json:"collaborators"`
	} `json:"sponsorCollaboratorsModule"`
	Description struct {
		BriefSummary        string `json:"briefSummary"`
		DetailedDescription string `json:"detailedDescription"`
	} `json:"descriptionModule"`
	Conditions struct {
		Conditions []string `json:"conditions"`
		Keywords   []string `json:"keywords"`
	} `json:"conditionsModule"`
	Design struct {
		StudyType      string   `json:"studyType"`
		Phases         []string `json:"phases"`
		EnrollmentInfo struct {
			Count *int   `json:"count"`
			Type  string `json:"type"`
		} `json:"enrollmentInfo"`
	} `json:"designModule"`
	ArmsInterventions struct {
		Interventions []InterventionRecord `json:"interventions"`
	} `json:"armsInterventionsModule"`
	Outcomes struct {
		Primary   []OutcomeRecord `json:"primaryOutcomes"`
		Secondary []OutcomeRecord `json:"secondaryOutcomes"`
	} `json:"outcomesModule"`
	Eligibility *EligibilityRecord `json:"eligibilityModule"`
	Locations   struct {
		Locations []LocationRecord `json:"locations"`
	} `json:"contactsLocationsModule"`
	References struct {
		References []ReferenceRecord `json:"references"`
	} `json:"referencesModule"`
}

type DateStruct struct {
	Date string `json:"date"`
}

type OrganizationRecord struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

type InterventionRecord struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type OutcomeRecord struct {
	Measure     string `json:"measure"`
	Description string `json:"description"`
	TimeFrame   string `json:"timeFrame"`
}

type EligibilityRecord struct {
	Criteria          string   `json:"eligibilityCriteria"`
	HealthyVolunteers *bool    `json:"healthyVolunteers"`
	Sex               string   `json:"sex"`
	MinimumAge        string   `json:"minimumAge"`
	MaximumAge        string   `json:"maximumAge"`
	StdAges           []string `json:"stdAges"`
}

type LocationRecord struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	GeoPoint *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"geoPoint"`
}

type ReferenceRecord struct {
	PMID     string `json:"pmid"`
	Type     string `json:"type"`
	Citation string `json:"citation"`
}

type Results struct {
	AdverseEvents *struct {
		SeriousEvents []AdverseEventRecord `json:"seriousEvents"`
		OtherEvents   []AdverseEventRecord `json:"otherEvents"`
	} `json:"adverseEventsModule"`
}

type AdverseEventRecord struct {
	Term        string `json:"term"`
	OrganSystem string `json:"organSystem"`
	Stats       []struct {
		GroupID     string `json:"groupId"`
		NumEvents   *int   `json:"numEvents"`
		NumAffected *int   `json:"numAffected"`
		NumAtRisk   *int   `json:"numAtRisk"`
	} `json:"stats"`
}
