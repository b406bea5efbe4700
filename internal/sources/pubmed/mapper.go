package pubmed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

var pubDateRE = regexp.MustCompile(`(\d{4})(?:\s+([A-Za-z]{3})[A-Za-z]*)?(?:\s+(\d{1,2}))?`)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParsePubDate reads MEDLINE dates such as "2023", "2023 Jan", "2023 Jan 15"
// and "1998 Dec-1999 Jan". Missing month and day default to 1.
func ParsePubDate(s string) *time.Time {
	m := pubDateRE.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month := time.January
	if m[2] != "" {
		mm, ok := months[strings.ToLower(m[2])]
		if !ok {
			// Seasons and other free text keep only the year.
			t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
		month = mm
	}
	day := 1
	if m[2] != "" && m[3] != "" {
		day, _ = strconv.Atoi(m[3])
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return nil
	}
	return &t
}

// pubDate renders the XML PubDate parts as a MEDLINE date string.
func pubDate(year, month, day, medline string) string {
	if year == "" {
		return medline
	}
	if n, err := strconv.Atoi(month); err == nil && n >= 1 && n <= 12 {
		month = time.Month(n).String()[:3]
	}
	return strings.Join(strings.Fields(year+" "+month+" "+day), " ")
}

var (
	articleSetTag = []byte("<PubmedArticleSet")
	articleOpen   = []byte("<PubmedArticle")
	articleClose  = []byte("</PubmedArticle>")
)

// ParseArticleSet decodes an efetch XML document one PubmedArticle element at
// a time, so a malformed article costs only itself. Each article that does
// not decode is passed to skip with its position in the document.
func ParseArticleSet(data []byte, skip func(index int, err error)) ([]Article, error) {
	if !bytes.Contains(data, articleSetTag) {
		return nil, errors.New("decode article set: no PubmedArticleSet element")
	}
	if skip == nil {
		skip = func(int, error) {}
	}

	var out []Article
	rest := data
	for i := 0; ; i++ {
		start := indexArticle(rest)
		if start < 0 {
			break
		}
		end := bytes.Index(rest[start:], articleClose)
		if end < 0 {
			skip(i, errors.New("unterminated PubmedArticle"))
			break
		}
		end += start + len(articleClose)

		var pa PubmedArticle
		if err := xml.Unmarshal(rest[start:end], &pa); err != nil {
			skip(i, fmt.Errorf("decode article: %w", err))
		} else {
			out = append(out, mapPubmedArticle(pa))
		}
		rest = rest[end:]
	}
	return out, nil
}

// indexArticle finds the next <PubmedArticle> start tag, ignoring
// <PubmedArticleSet>.
func indexArticle(b []byte) int {
	off := 0
	for {
		i := bytes.Index(b[off:], articleOpen)
		if i < 0 {
			return -1
		}
		i += off
		next := i + len(articleOpen)
		if next < len(b) {
			switch b[next] {
			case '>', ' ', '\t', '\n', '\r':
				return i
			}
		}
		off = next
	}
}

func mapPubmedArticle(pa PubmedArticle) Article {
	c := pa.Citation
	art := c.Article
	d := art.Journal.Issue.PubDate

	a := Article{
		PMID:             strings.TrimSpace(c.PMID),
		Title:            string(art.Title),
		Journal:          art.Journal.Title,
		PubDate:          pubDate(d.Year, d.Month, d.Day, d.MedlineDate),
		Languages:        art.Languages,
		PublicationTypes: art.PublicationTypes,
		MeshTerms:        c.MeshHeadings,
		Copyright:        art.Abstract.Copyright,
	}

	var sections []string
	for _, t := range art.Abstract.Texts {
		if t.Text == "" {
			continue
		}
		if t.Label != "" {
			sections = append(sections, t.Label+": "+t.Text)
			continue
		}
		sections = append(sections, t.Text)
	}
	a.Abstract = strings.Join(sections, "\n")

	seenAff := map[string]bool{}
	for _, au := range art.Authors {
		if n := au.name(); n != "" {
			a.Authors = append(a.Authors, n)
		}
		for _, aff := range au.Affiliations {
			if aff != "" && !seenAff[aff] {
				seenAff[aff] = true
				a.Affiliations = append(a.Affiliations, aff)
			}
		}
	}
	for _, k := range c.Keywords {
		if k != "" {
			a.Keywords = append(a.Keywords, string(k))
		}
	}
	for _, id := range pa.Data.IDs {
		v := strings.TrimSpace(id.Value)
		switch id.Type {
		case "doi":
			a.DOI = v
		case "pmc":
			a.PMCID = v
		}
	}
	return a
}

// BodyText joins the text of every <p> inside <body> of a PMC article.
func BodyText(data []byte) (string, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	var (
		paras     []string
		cur       strings.Builder
		inBody    int
		paraDepth int
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode pmc article: %w", err)
		}
		switch v := tok.(type) {
		case xml.StartElement:
			switch {
			case v.Name.Local == "body":
				inBody++
			case inBody > 0 && v.Name.Local == "p":
				paraDepth++
			}
		case xml.EndElement:
			switch {
			case v.Name.Local == "body" && inBody > 0:
				inBody--
			case v.Name.Local == "p" && paraDepth > 0:
				paraDepth--
				if paraDepth == 0 {
					if p := strings.Join(strings.Fields(cur.String()), " "); p != "" {
						paras = append(paras, p)
					}
					cur.Reset()
				}
			}
		case xml.CharData:
			if paraDepth > 0 {
				cur.Write(v)
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}

// MapArticle converts a fetched article into a Publication.
func MapArticle(a Article) (*Publication, error) {
	id := strings.TrimSpace(a.PMID)
	if id == "" {
		return nil, harvest.Invalid("article without pmid")
	}
	title := a.Title
	if title == "" {
		title = "No Title Available"
	}
	return &Publication{
		PMID:             id,
		PMCID:            models.StringPtr(a.PMCID),
		DOI:              models.StringPtr(a.DOI),
		Title:            title,
		Abstract:         models.StringPtr(a.Abstract),
		Authors:          models.StringArray(a.Authors),
		Affiliations:     models.StringArray(a.Affiliations),
		Journal:          models.StringPtr(a.Journal),
		PubDate:          ParsePubDate(a.PubDate),
		PublicationTypes: models.StringArray(a.PublicationTypes),
		Languages:        models.StringArray(a.Languages),
		Copyright:        models.StringPtr(a.Copyright),
		MeshTerms:        models.StringArray(a.MeshTerms),
		Keywords:         models.StringArray(a.Keywords),
		UpdatedAt:        time.Now().UTC(),
	}, nil
}
