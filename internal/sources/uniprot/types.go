package uniprot

import "encoding/json"

// SearchResponse is one page of uniprotkb/search.
type SearchResponse struct {
	Results []Entry `json:"results"`
}

type nameValue struct {
	Value string `json:"value"`
}

// Entry is one UniProtKB entry. Raw keeps the original payload.
type Entry struct {
	PrimaryAccession string `json:"primaryAccession"`
	UniProtKBID      string `json:"uniProtkbId"`
	EntryType        string `json:"entryType"`

	ProteinDescription struct {
		RecommendedName *struct {
			FullName nameValue `json:"fullName"`
		} `json:"recommendedName"`
		SubmissionNames []struct {
			FullName nameValue `json:"fullName"`
		} `json:"submissionNames"`
	} `json:"proteinDescription"`

	Genes []struct {
		GeneName *nameValue `json:"geneName"`
	} `json:"genes"`

	Organism struct {
		ScientificName string `json:"scientificName"`
		TaxonID        *int64 `json:"taxonId"`
	} `json:"organism"`

	Sequence struct {
		Value     string `json:"value"`
		Length    *int   `json:"length"`
		MolWeight *int   `json:"molWeight"`
	} `json:"sequence"`

	Raw json.RawMessage `json:"-"`
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	type plain Entry
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = Entry(p)
	e.Raw = append(json.RawMessage(nil), b...)
	return nil
}
