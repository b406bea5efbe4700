package uniprot

import (
	"strings"
	"time"

	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/models"
)

// ProteinName prefers the recommended name and falls back to the first
// submission name.
func ProteinName(e Entry) string {
	d := e.ProteinDescription
	if d.RecommendedName != nil && d.RecommendedName.FullName.Value != "" {
		return d.RecommendedName.FullName.Value
	}
	for _, s := range d.SubmissionNames {
		if s.FullName.Value != "" {
			return s.FullName.Value
		}
	}
	return ""
}

// MapEntry converts an entry into a Protein.
func MapEntry(e Entry) (*Protein, error) {
	acc := strings.TrimSpace(e.PrimaryAccession)
	if acc == "" {
		return nil, harvest.Invalid("entry without primary accession")
	}

	var gene string
	if len(e.Genes) > 0 && e.Genes[0].GeneName != nil {
		gene = e.Genes[0].GeneName.Value
	}

	return &Protein{
		Accession:    acc,
		EntryName:    models.StringPtr(e.UniProtKBID),
		ProteinName:  models.StringPtr(ProteinName(e)),
		GeneName:     models.StringPtr(gene),
		OrganismName: models.StringPtr(e.Organism.ScientificName),
		OrganismID:   e.Organism.TaxonID,
		Sequence:     models.StringPtr(e.Sequence.Value),
		Length:       e.Sequence.Length,
		Mass:         e.Sequence.MolWeight,
		Reviewed:     strings.Contains(e.EntryType, "Swiss-Prot"),
		Data:         e.Raw,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}
