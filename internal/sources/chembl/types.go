package chembl

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Number decodes JSON numbers that ChEMBL sometimes sends quoted.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = Number{}
		return nil
	}
	if s == "true" {
		*n = Number{Value: 1, Valid: true}
		return nil
	}
	if s == "false" {
		*n = Number{Value: 0, Valid: true}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = Number{Value: f, Valid: true}
	return nil
}

// Float returns nil when the value was absent.
func (n Number) Float() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Int returns nil when the value was absent.
func (n Number) Int() *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Value)
	return &v
}

// Bool returns nil when the value was absent.
func (n Number) Bool() *bool {
	if !n.Valid {
		return nil
	}
	v := n.Value != 0
	return &v
}

// PageMeta is the pagination block of list responses.
type PageMeta struct {
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	TotalCount int     `json:"total_count"`
	Next       *string `json:"next"`
}

// MoleculeSearchResponse is returned by molecule/search.
type MoleculeSearchResponse struct {
	Molecules []MoleculeRecord `json:"molecules"`
	PageMeta  PageMeta         `json:"page_meta"`
}

// MoleculeRecord is one molecule. Raw keeps the original payload.
type MoleculeRecord struct {
	ChemblID        string              `json:"molecule_chembl_id"`
	PrefName        *string             `json:"pref_name"`
	MoleculeType    *string             `json:"molecule_type"`
	MaxPhase        Number              `json:"max_phase"`
	TherapeuticFlag Number              `json:"therapeutic_flag"`
	StructureType   *string             `json:"structure_type"`
	FirstApproval   Number              `json:"first_approval"`
	BlackBoxWarning Number              `json:"black_box_warning"`
	NaturalProduct  Number              `json:"natural_product"`
	Prodrug         Number              `json:"prodrug"`
	Oral            Number              `json:"oral"`
	Parenteral      Number              `json:"parenteral"`
	Topical         Number              `json:"topical"`
	InorganicFlag   Number              `json:"inorganic_flag"`
	DosedIngredient Number              `json:"dosed_ingredient"`
	Structures      *MoleculeStructures `json:"molecule_structures"`
	Properties      *MoleculeProperties `json:"molecule_properties"`
	Synonyms        []MoleculeSynonym   `json:"molecule_synonyms"`
	ATC             []string            `json:"atc_classifications"`
	CrossReferences []CrossReference    `json:"cross_references"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the record and keeps its raw bytes.
func (m *MoleculeRecord) UnmarshalJSON(b []byte) error {
	type plain MoleculeRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = MoleculeRecord(p)
	m.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type MoleculeStructures struct {
	CanonicalSmiles  *string `json:"canonical_smiles"`
	StandardInchi    *string `json:"standard_inchi"`
	StandardInchiKey *string `json:"standard_inchi_key"`
}

type MoleculeProperties struct {
	FullMwt          Number  `json:"full_mwt"`
	Alogp            Number  `json:"alogp"`
	Hba              Number  `json:"hba"`
	Hbd              Number  `json:"hbd"`
	Psa              Number  `json:"psa"`
	Rtb              Number  `json:"rtb"`
	AromaticRings    Number  `json:"aromatic_rings"`
	HeavyAtoms       Number  `json:"heavy_atoms"`
	MwFreebase       Number  `json:"mw_freebase"`
	NpLikenessScore  Number  `json:"np_likeness_score"`
	NumRo5Violations Number  `json:"num_ro5_violations"`
	QedWeighted      Number  `json:"qed_weighted"`
	Ro3Pass          *string `json:"ro3_pass"`
}

type MoleculeSynonym struct {
	Synonym string  `json:"molecule_synonym"`
	SynType *string `json:"syn_type"`
}

type CrossReference struct {
	XrefID   *string `json:"xref_id"`
	XrefName *string `json:"xref_name"`
	XrefSrc  *string `json:"xref_src"`
}

// MechanismResponse is returned by the mechanism endpoint.
type MechanismResponse struct {
	Mechanisms []MechanismRecord `json:"mechanisms"`
	PageMeta   PageMeta          `json:"page_meta"`
}

type MechanismRecord struct {
	MechanismOfAction *string `json:"mechanism_of_action"`
	ActionType        *string `json:"action_type"`
	TargetChemblID    *string `json:"target_chembl_id"`
	MechanismComment  *string `json:"mechanism_comment"`
	DirectInteraction Number  `json:"direct_interaction"`
	DiseaseEfficacy   Number  `json:"disease_efficacy"`
	RecordID          Number  `json:"record_id"`
}
