package dailymed

import (
	"strings"
	"time"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// Bundle is a drug with its NDC codes.
type Bundle struct {
	Drug *Drug
	NDCs []NDC
}

// MapSPL converts a label summary and its NDC codes into storage models.
func MapSPL(s SPL, codes []string) (*Bundle, error) {
	id := strings.TrimSpace(s.SetID)
	if id == "" {
		return nil, harvest.Invalid("spl without setid")
	}

	b := &Bundle{Drug: &Drug{
		SetID:         id,
		Title:         models.StringPtr(s.Title),
		SplVersion:    s.SplVersion,
		PublishedDate: models.StringPtr(s.PublishedDate),
		Data:          s.Raw,
		UpdatedAt:     time.Now().UTC(),
	}}

	seen := map[string]bool{}
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		b.NDCs = append(b.NDCs, NDC{SetID: id, NDC: c})
	}
	return b, nil
}

// LabelKey is the blob key of an archived SPL document.
func LabelKey(setID string) string {
	return Name + "/" + setID + ".xml"
}
