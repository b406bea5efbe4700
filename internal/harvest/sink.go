package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// ErrInvalidRecord marks a record that cannot be mapped. The harvester skips
// such records and keeps going.
var ErrInvalidRecord = errors.New("invalid record")

// Invalid returns an error wrapping ErrInvalidRecord.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// Sink persists one source's records.
type Sink[R any] interface {
	// Key returns the natural id of rec, or "" when it has none.
	Key(rec R) string
	// Existing reports which ids are already stored.
	Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error)
	// Link associates a stored entity with a search term.
	Link(ctx context.Context, db bun.IDB, searchID int64, id string) error
	// Store maps rec, fetching any sub-resources, upserts the entity and
	// replaces its child collections. It returns the id to link, which is
	// normally Key(rec). Mapping faults must wrap ErrInvalidRecord and be
	// reported before anything is written.
	Store(ctx context.Context, db bun.IDB, rec R) (string, error)
}

// Preparer is implemented by sinks that enrich new records in bulk before
// Store. Records missing from the returned slice count as skipped.
type Preparer[R any] interface {
	Prepare(ctx context.Context, recs []R) ([]R, error)
}

// Finisher is implemented by sinks with side effects outside the database,
// such as archived documents. Finish is called once the transaction has
// committed or rolled back.
type Finisher interface {
	Finish(ctx context.Context, committed bool)
}

// sqlite caps bound parameters per statement.
const inChunk = 500

// ExistingIDs returns the subset of ids present in column of model's table.
func ExistingIDs(ctx context.Context, db bun.IDB, model any, column string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += inChunk {
		end := min(start+inChunk, len(ids))

		var found []string
		err := db.NewSelect().
			Model(model).
			Column(column).
			Where("? IN (?)", bun.Ident(column), bun.In(ids[start:end])).
			Scan(ctx, &found)
		if err != nil {
			return nil, fmt.Errorf("select existing ids: %w", err)
		}
		for _, id := range found {
			out[id] = true
		}
	}
	return out, nil
}

// LinkRow inserts an association row, keeping an existing one.
func LinkRow(ctx context.Context, db bun.IDB, link any) error {
	if _, err := db.NewInsert().Model(link).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert association: %w", err)
	}
	return nil
}

// Upsert inserts model or overwrites every non-key column of the row that
// conflicts on the given columns.
func Upsert(ctx context.Context, db bun.IDB, model any, conflict string) error {
	if _, err := db.NewInsert().Model(model).On("CONFLICT (" + conflict + ") DO UPDATE").Exec(ctx); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// ReplaceChildren deletes every C whose column equals parentID and inserts
// children in their place.
func ReplaceChildren[C any](ctx context.Context, db bun.IDB, column string, parentID any, children []C) error {
	if _, err := db.NewDelete().
		Model((*C)(nil)).
		Where("? = ?", bun.Ident(column), parentID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete children: %w", err)
	}
	if len(children) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&children).Exec(ctx); err != nil {
		return fmt.Errorf("insert children: %w", err)
	}
	return nil
}
