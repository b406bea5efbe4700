package harvest

// State is the progress of one harvest call.
type State int

const (
	NotStarted State = iota
	SearchTermResolved
	Paging
	Deduped
	Stored
	Committed
	Failed
)

var stateNames = map[State]string{
	NotStarted:         "not_started",
	SearchTermResolved: "search_term_resolved",
	Paging:             "paging",
	Deduped:            "deduped",
	Stored:             "stored",
	Committed:          "committed",
	Failed:             "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Report summarizes a harvest call. Every count is zero unless State is
// Committed.
type Report struct {
	SearchTermID int64
	Term         string
	// Fetched is the number of records the source returned.
	Fetched int
	// Created counts records stored through the full path.
	Created int
	// Linked counts records already on file that were only re-linked.
	Linked int
	// Skipped counts records dropped for missing keys or mapping faults.
	Skipped int
	// Total is the source-reported match count, or UnknownTotal.
	Total int
	State State
}
