package rxnav

// IDGroupResponse is rxcui.json.
type IDGroupResponse struct {
	IDGroup struct {
		Name     string   `json:"name"`
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

// Concept is a drug name resolved to an RxNorm concept.
type Concept struct {
	RxCUI string
	Name  string
}

// ClassesResponse is rxclass/class/byRxcui.json.
type ClassesResponse struct {
	List struct {
		Info []ClassInfo `json:"rxclassDrugInfo"`
	} `json:"rxclassDrugInfoList"`
}

type ClassInfo struct {
	Item struct {
		ClassID   string `json:"classId"`
		ClassName string `json:"className"`
		ClassType string `json:"classType"`
	} `json:"rxclassMinConceptItem"`
	Rela       string `json:"rela"`
	RelaSource string `json:"relaSource"`
}
