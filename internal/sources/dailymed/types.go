package dailymed

import "encoding/json"

// SPLsResponse is one page of spls.json.
type SPLsResponse struct {
	Data     []SPL `json:"data"`
	Metadata struct {
		TotalElements   int `json:"total_elements"`
		TotalPages      int `json:"total_pages"`
		CurrentPage     int `json:"current_page"`
		ElementsPerPage int `json:"elements_per_page"`
	} `json:"metadata"`
}

// SPL is one structured product label summary.
type SPL struct {
	SetID         string `json:"setid"`
	Title         string `json:"title"`
	SplVersion    *int   `json:"spl_version"`
	PublishedDate string `json:"published_date"`

	Raw json.RawMessage `json:"-"`
}

func (s *SPL) UnmarshalJSON(b []byte) error {
	type plain SPL
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = SPL(p)
	s.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// NDCsResponse is spls/{setid}/ndcs.json.
type NDCsResponse struct {
	Data struct {
		SetID string `json:"setid"`
		NDCs  []struct {
			NDC string `json:"ndc"`
		} `json:"ndcs"`
	} `json:"data"`
}
