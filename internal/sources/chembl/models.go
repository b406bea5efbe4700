package chembl

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/mkoziy/biomed-miners/internal/migrations"
)

// Molecule is a ChEMBL compound keyed by its ChEMBL id.
type Molecule struct {
	bun.BaseModel `bun:"table:molecules,alias:mol"`

	ChemblID        string          `bun:"chembl_id,pk" json:"chembl_id"`
	PrefName        *string         `bun:"pref_name" json:"pref_name,omitempty"`
	MoleculeType    *string         `bun:"molecule_type" json:"molecule_type,omitempty"`
	MaxPhase        *float64        `bun:"max_phase" json:"max_phase,omitempty"`
	TherapeuticFlag *bool           `bun:"therapeutic_flag" json:"therapeutic_flag,omitempty"`
	StructureType   *string         `bun:"structure_type" json:"structure_type,omitempty"`
	InchiKey        *string         `bun:"inchi_key" json:"inchi_key,omitempty"`
	CanonicalSmiles *string         `bun:"canonical_smiles" json:"canonical_smiles,omitempty"`
	StandardInchi   *string         `bun:"standard_inchi" json:"standard_inchi,omitempty"`
	FirstApproval   *int            `bun:"first_approval" json:"first_approval,omitempty"`
	BlackBoxWarning *int            `bun:"black_box_warning" json:"black_box_warning,omitempty"`
	NaturalProduct  *int            `bun:"natural_product" json:"natural_product,omitempty"`
	Prodrug         *int            `bun:"prodrug" json:"prodrug,omitempty"`
	Oral            *bool           `bun:"oral" json:"oral,omitempty"`
	Parenteral      *bool           `bun:"parenteral" json:"parenteral,omitempty"`
	Topical         *bool           `bun:"topical" json:"topical,omitempty"`
	InorganicFlag   *int            `bun:"inorganic_flag" json:"inorganic_flag,omitempty"`
	DosedIngredient *bool           `bun:"dosed_ingredient" json:"dosed_ingredient,omitempty"`
	Data            json.RawMessage `bun:"data,type:json" json:"-"`
	UpdatedAt       time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// Properties is the has-one physicochemical property row of a molecule.
type Properties struct {
	bun.BaseModel `bun:"table:molecule_properties,alias:mp"`

	ChemblID         string   `bun:"chembl_id,pk"`
	FullMwt          *float64 `bun:"full_mwt"`
	Alogp            *float64 `bun:"alogp"`
	Hba              *int     `bun:"hba"`
	Hbd              *int     `bun:"hbd"`
	Psa              *float64 `bun:"psa"`
	Rtb              *int     `bun:"rtb"`
	AromaticRings    *int     `bun:"aromatic_rings"`
	HeavyAtoms       *int     `bun:"heavy_atoms"`
	MwFreebase       *float64 `bun:"mw_freebase"`
	NpLikenessScore  *float64 `bun:"np_likeness_score"`
	NumRo5Violations *int     `bun:"num_ro5_violations"`
	QedWeighted      *float64 `bun:"qed_weighted"`
	Ro3Pass          *string  `bun:"ro3_pass"`
}

type Synonym struct {
	bun.BaseModel `bun:"table:molecule_synonyms,alias:ms"`

	ID       int64   `bun:"id,pk,autoincrement"`
	ChemblID string  `bun:"chembl_id,notnull"`
	Synonym  string  `bun:"synonym,notnull"`
	SynType  *string `bun:"syn_type"`
}

type ATCClassification struct {
	bun.BaseModel `bun:"table:atc_classifications,alias:atc"`

	ID       int64  `bun:"id,pk,autoincrement"`
	ChemblID string `bun:"chembl_id,notnull"`
	Level5   string `bun:"level5,notnull"`
}

type CrossRef struct {
	bun.BaseModel `bun:"table:cross_references,alias:xr"`

	ID       int64   `bun:"id,pk,autoincrement"`
	ChemblID string  `bun:"chembl_id,notnull"`
	XrefSrc  *string `bun:"xref_src"`
	XrefID   *string `bun:"xref_id"`
	XrefName *string `bun:"xref_name"`
}

// Mechanism is a mechanism of action from the per-molecule sub-query.
type Mechanism struct {
	bun.BaseModel `bun:"table:mechanisms,alias:mech"`

	ID                int64   `bun:"id,pk,autoincrement"`
	ChemblID          string  `bun:"chembl_id,notnull"`
	MechanismOfAction *string `bun:"mechanism_of_action"`
	ActionType        *string `bun:"action_type"`
	TargetChemblID    *string `bun:"target_chembl_id"`
	MechanismComment  *string `bun:"mechanism_comment"`
	DirectInteraction *bool   `bun:"direct_interaction"`
	DiseaseEfficacy   *bool   `bun:"disease_efficacy"`
	RecordID          *int    `bun:"record_id"`
}

// SearchToMolecule links search terms to the molecules they surfaced.
type SearchToMolecule struct {
	bun.BaseModel `bun:"table:search_to_molecule,alias:stm"`

	SearchID int64  `bun:"search_id,pk"`
	ChemblID string `bun:"chembl_id,pk"`
}

// Schema is the ChEMBL database layout.
var Schema = migrations.Schema{
	Models: []interface{}{
		(*Molecule)(nil),
		(*Properties)(nil),
		(*Synonym)(nil),
		(*ATCClassification)(nil),
		(*CrossRef)(nil),
		(*Mechanism)(nil),
		(*SearchToMolecule)(nil),
	},
	Indexes: []migrations.Index{
		{Name: "idx_molecules_pref_name", Table: "molecules", Columns: "pref_name"},
		{Name: "idx_molecule_synonyms_chembl_id", Table: "molecule_synonyms", Columns: "chembl_id"},
		{Name: "idx_atc_classifications_chembl_id", Table: "atc_classifications", Columns: "chembl_id"},
		{Name: "idx_cross_references_chembl_id", Table: "cross_references", Columns: "chembl_id"},
		{Name: "idx_mechanisms_chembl_id", Table: "mechanisms", Columns: "chembl_id"},
	},
}
