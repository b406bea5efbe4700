package rxnav

import (
	"strings"
	"time"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// Bundle is a drug, the classes it belongs to and the links between them.
type Bundle struct {
	Drug    *Drug
	Classes []Class
	Links   []DrugClass
}

// MapConcept combines a concept with its class lookups, keyed by relation.
func MapConcept(c Concept, byRelation map[string][]ClassInfo) (*Bundle, error) {
	id := strings.TrimSpace(c.RxCUI)
	if id == "" {
		return nil, harvest.Invalid("concept without rxcui")
	}

	b := &Bundle{Drug: &Drug{RxCUI: id, Name: models.StringPtr(c.Name), UpdatedAt: time.Now().UTC()}}

	classes := map[string]bool{}
	links := map[string]bool{}
	for _, rela := range Relations {
		for _, info := range byRelation[rela] {
			cid := strings.TrimSpace(info.Item.ClassID)
			if cid == "" {
				continue
			}
			if !classes[cid] {
				classes[cid] = true
				b.Classes = append(b.Classes, Class{
					ClassID: cid,
					Name:    models.StringPtr(info.Item.ClassName),
					Type:    models.StringPtr(info.Item.ClassType),
				})
			}
			if key := cid + "|" + rela; !links[key] {
				links[key] = true
				b.Links = append(b.Links, DrugClass{
					RxCUI:    id,
					ClassID:  cid,
					Relation: rela,
					Source:   models.StringPtr(info.RelaSource),
				})
			}
		}
	}
	return b, nil
}
