package chembl

import (
	"strings"
	"time"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// Bundle is a molecule with every child collection it owns.
type Bundle struct {
	Molecule   *Molecule
	Properties []Properties
	Synonyms   []Synonym
	ATC        []ATCClassification
	CrossRefs  []CrossRef
	Mechanisms []Mechanism
}

// MapMolecule converts a search record into storage models.
func MapMolecule(rec MoleculeRecord) (*Bundle, error) {
	id := strings.TrimSpace(rec.ChemblID)
	if !strings.HasPrefix(id, "CHEMBL") {
		return nil, harvest.Invalid("unexpected chembl id %q", rec.ChemblID)
	}

	mol := &Molecule{
		ChemblID:        id,
		PrefName:        rec.PrefName,
		MoleculeType:    rec.MoleculeType,
		MaxPhase:        rec.MaxPhase.Float(),
		TherapeuticFlag: rec.TherapeuticFlag.Bool(),
		StructureType:   rec.StructureType,
		FirstApproval:   rec.FirstApproval.Int(),
		BlackBoxWarning: rec.BlackBoxWarning.Int(),
		NaturalProduct:  rec.NaturalProduct.Int(),
		Prodrug:         rec.Prodrug.Int(),
		Oral:            rec.Oral.Bool(),
		Parenteral:      rec.Parenteral.Bool(),
		Topical:         rec.Topical.Bool(),
		InorganicFlag:   rec.InorganicFlag.Int(),
		DosedIngredient: rec.DosedIngredient.Bool(),
		Data:            rec.Raw,
		UpdatedAt:       time.Now().UTC(),
	}
	if s := rec.Structures; s != nil {
		mol.CanonicalSmiles = s.CanonicalSmiles
		mol.StandardInchi = s.StandardInchi
		mol.InchiKey = s.StandardInchiKey
	}

	b := &Bundle{Molecule: mol}

	if p := rec.Properties; p != nil {
		b.Properties = []Properties{{
			ChemblID:         id,
			FullMwt:          p.FullMwt.Float(),
			Alogp:            p.Alogp.Float(),
			Hba:              p.Hba.Int(),
			Hbd:              p.Hbd.Int(),
			Psa:              p.Psa.Float(),
			Rtb:              p.Rtb.Int(),
			AromaticRings:    p.AromaticRings.Int(),
			HeavyAtoms:       p.HeavyAtoms.Int(),
			MwFreebase:       p.MwFreebase.Float(),
			NpLikenessScore:  p.NpLikenessScore.Float(),
			NumRo5Violations: p.NumRo5Violations.Int(),
			QedWeighted:      p.QedWeighted.Float(),
			Ro3Pass:          p.Ro3Pass,
		}}
	}

	for _, s := range rec.Synonyms {
		if strings.TrimSpace(s.Synonym) == "" {
			continue
		}
		b.Synonyms = append(b.Synonyms, Synonym{ChemblID: id, Synonym: s.Synonym, SynType: s.SynType})
	}
	for _, code := range rec.ATC {
		if code == "" {
			continue
		}
		b.ATC = append(b.ATC, ATCClassification{ChemblID: id, Level5: code})
	}
	for _, x := range rec.CrossReferences {
		b.CrossRefs = append(b.CrossRefs, CrossRef{ChemblID: id, XrefSrc: x.XrefSrc, XrefID: x.XrefID, XrefName: x.XrefName})
	}

	return b, nil
}

// MapMechanisms converts mechanism records for chemblID.
func MapMechanisms(chemblID string, recs []MechanismRecord) []Mechanism {
	out := make([]Mechanism, 0, len(recs))
	for _, r := range recs {
		out = append(out, Mechanism{
			ChemblID:          chemblID,
			MechanismOfAction: r.MechanismOfAction,
			ActionType:        r.ActionType,
			TargetChemblID:    r.TargetChemblID,
			MechanismComment:  r.MechanismComment,
			DirectInteraction: r.DirectInteraction.Bool(),
			DiseaseEfficacy:   r.DiseaseEfficacy.Bool(),
			RecordID:          r.RecordID.Int(),
		})
	}
	return out
}

