package pubmed

import (
	"encoding/json"
	"encoding/xml"
	"strings"
)

// ESearchResponse is esearch.fcgi with retmode=json. Counts are strings.
type ESearchResponse struct {
	Result struct {
		Count    string   `json:"count"`
		RetMax   string   `json:"retmax"`
		RetStart string   `json:"retstart"`
		IDList   []string `json:"idlist"`
		Error    string   `json:"ERROR"`
	} `json:"esearchresult"`
}

// ESummaryResponse is esummary.fcgi with retmode=json. Result maps each PMID
// to its summary, plus a "uids" key listing the PMIDs.
type ESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// Summary holds the identifiers of one esummary record.
type Summary struct {
	UID        string `json:"uid"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

// Article is one PubMed record. Search results carry only the PMID; the rest
// is filled from efetch.
type Article struct {
	PMID             string
	PMCID            string
	DOI              string
	Title            string
	Abstract         string
	Journal          string
	PubDate          string
	Authors          []string
	Affiliations     []string
	PublicationTypes []string
	Languages        []string
	MeshTerms        []string
	Keywords         []string
	Copyright        string
}

// text collects all character data of an element, including inline markup
// such as <i> or <sup> in titles and abstracts.
type text string

func (t *text) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(v)
		}
	}
	*t = text(strings.Join(strings.Fields(b.String()), " "))
	return nil
}

// PubmedArticle is one article of the efetch.fcgi db=pubmed retmode=xml
// document.
type PubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title string `xml:"Title"`
				Issue struct {
					PubDate struct {
						Year        string `xml:"Year"`
						Month       string `xml:"Month"`
						Day         string `xml:"Day"`
						MedlineDate string `xml:"MedlineDate"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			Title    text `xml:"ArticleTitle"`
			Abstract struct {
				Texts     []abstractText `xml:"AbstractText"`
				Copyright string         `xml:"CopyrightInformation"`
			} `xml:"Abstract"`
			Authors          []author `xml:"AuthorList>Author"`
			Languages        []string `xml:"Language"`
			PublicationTypes []string `xml:"PublicationTypeList>PublicationType"`
		} `xml:"Article"`
		MeshHeadings []string `xml:"MeshHeadingList>MeshHeading>DescriptorName"`
		Keywords     []text   `xml:"KeywordList>Keyword"`
	} `xml:"MedlineCitation"`
	Data struct {
		IDs []struct {
			Type  string `xml:"IdType,attr"`
			Value string `xml:",chardata"`
		} `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

// abstractText is one section of a structured abstract.
type abstractText struct {
	Label string
	Text  string
}

func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	var t text
	if err := t.UnmarshalXML(d, start); err != nil {
		return err
	}
	a.Text = string(t)
	return nil
}

type author struct {
	LastName       string   `xml:"LastName"`
	ForeName       string   `xml:"ForeName"`
	Initials       string   `xml:"Initials"`
	CollectiveName string   `xml:"CollectiveName"`
	Affiliations   []string `xml:"AffiliationInfo>Affiliation"`
}

func (a author) name() string {
	if a.CollectiveName != "" {
		return a.CollectiveName
	}
	// MEDLINE style: "Smith JA".
	return strings.TrimSpace(a.LastName + " " + a.Initials)
}
