package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SearchTerm is a normalized query. Every harvest for an equivalent query
// reuses the same row; Scope separates endpoints of one source.
type SearchTerm struct {
	bun.BaseModel `bun:"table:search_terms,alias:st"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Term      string    `bun:"term,notnull,unique:search_term_scope" json:"term"`
	Scope     string    `bun:"scope,notnull,default:'',unique:search_term_scope" json:"scope,omitempty"`
	Timestamp time.Time `bun:"timestamp,nullzero,notnull,default:current_timestamp" json:"timestamp"`
}

// Run statuses recorded on HarvestRun.
const (
	RunRunning   = "running"
	RunCommitted = "committed"
	RunFailed    = "failed"
)

// HarvestRun tracks one harvest invocation and its outcome. Runs live in
// their own database so a rolled-back harvest leaves the source file as it
// was.
type HarvestRun struct {
	bun.BaseModel `bun:"table:harvest_runs,alias:hr"`

	ID         int64      `bun:"id,pk,autoincrement" json:"id"`
	RunID      string     `bun:"run_id,unique,notnull" json:"run_id"`
	Source     string     `bun:"source,notnull" json:"source"`
	Query      string     `bun:"query,notnull" json:"query"`
	Status     string     `bun:"status,notnull" json:"status"`
	Fetched    int        `bun:"fetched,notnull,default:0" json:"fetched"`
	Created    int        `bun:"created,notnull,default:0" json:"created"`
	Linked     int        `bun:"linked,notnull,default:0" json:"linked"`
	Skipped    int        `bun:"skipped,notnull,default:0" json:"skipped"`
	Error      *string    `bun:"error" json:"error,omitempty"`
	StartedAt  time.Time  `bun:"started_at,notnull" json:"started_at"`
	FinishedAt *time.Time `bun:"finished_at" json:"finished_at,omitempty"`
}
