package harvest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/models"
)

// ErrEmptyQuery is returned when a query normalizes to nothing.
var ErrEmptyQuery = errors.New("empty query")

// Fetcher collects every record for query up to maxRecords. query is the
// caller's text with whitespace collapsed; case is preserved.
type Fetcher[R any] func(ctx context.Context, term string, maxRecords int) (Result[R], error)

// Recorder observes finished harvest calls.
type Recorder interface {
	ObserveHarvest(source string, rep Report, elapsed time.Duration)
}

// Runner is a harvester of any record type.
type Runner interface {
	Run(ctx context.Context, query string, maxRecords int) (Report, error)
}

// Harvester runs the search, paginate, dedupe and store loop for one source.
type Harvester[R any] struct {
	Source string
	// Scope separates search terms of different endpoints of one source.
	Scope    string
	DB       *bun.DB
	Fetch    Fetcher[R]
	Sink     Sink[R]
	Logger   *zap.Logger
	Recorder Recorder
}

// Run harvests query in a single transaction. On any failure the transaction
// is rolled back and the returned report has State Failed and zero counts.
func (h *Harvester[R]) Run(ctx context.Context, query string, maxRecords int) (Report, error) {
	started := time.Now()
	logger := h.logger().With(zap.String("source", h.Source), zap.String("query", query))

	term := Normalize(query)
	if term == "" {
		return Report{State: Failed}, ErrEmptyQuery
	}

	rep, err := h.run(ctx, term, Collapse(query), maxRecords, logger)
	if f, ok := h.Sink.(Finisher); ok {
		f.Finish(context.WithoutCancel(ctx), err == nil)
	}
	if err != nil {
		logger.Error("harvest failed, rolled back", zap.Error(err))
		rep = Report{Term: term, Total: UnknownTotal, State: Failed}
	} else {
		logger.Info("harvest committed",
			zap.Int64("search_term_id", rep.SearchTermID),
			zap.Int("fetched", rep.Fetched),
			zap.Int("created", rep.Created),
			zap.Int("linked", rep.Linked),
			zap.Int("skipped", rep.Skipped),
			zap.Int("total", rep.Total),
		)
	}

	if h.Recorder != nil {
		h.Recorder.ObserveHarvest(h.Source, rep, time.Since(started))
	}
	return rep, err
}

func (h *Harvester[R]) run(ctx context.Context, term, query string, maxRecords int, logger *zap.Logger) (Report, error) {
	rep := Report{Term: term, Total: UnknownTotal, State: NotStarted}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return rep, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	st, err := ResolveSearchTerm(ctx, tx, term, h.Scope)
	if err != nil {
		return rep, err
	}
	rep.SearchTermID = st.ID
	rep.State = SearchTermResolved

	rep.State = Paging
	res, err := h.Fetch(ctx, query, maxRecords)
	if err != nil {
		return rep, fmt.Errorf("fetch: %w", err)
	}
	rep.Fetched = len(res.Records)
	rep.Total = res.Total

	keys := make([]string, 0, len(res.Records))
	byKey := make(map[string]R, len(res.Records))
	for _, rec := range res.Records {
		key := h.Sink.Key(rec)
		if key == "" {
			logger.Warn("record without id skipped")
			rep.Skipped++
			continue
		}
		if _, dup := byKey[key]; dup {
			continue
		}
		byKey[key] = rec
		keys = append(keys, key)
	}

	existing, err := h.Sink.Existing(ctx, tx, keys)
	if err != nil {
		return rep, err
	}
	rep.State = Deduped

	fresh := make([]R, 0, len(keys))
	for _, key := range keys {
		if existing[key] {
			if err := h.Sink.Link(ctx, tx, st.ID, key); err != nil {
				return rep, err
			}
			rep.Linked++
			continue
		}
		fresh = append(fresh, byKey[key])
	}

	if p, ok := h.Sink.(Preparer[R]); ok && len(fresh) > 0 {
		prepared, err := p.Prepare(ctx, fresh)
		if err != nil {
			return rep, fmt.Errorf("prepare: %w", err)
		}
		rep.Skipped += len(fresh) - len(prepared)
		fresh = prepared
	}

	for _, rec := range fresh {
		key := h.Sink.Key(rec)
		id, err := h.Sink.Store(ctx, tx, rec)
		if errors.Is(err, ErrInvalidRecord) {
			logger.Warn("record skipped", zap.String("id", key), zap.Error(err))
			rep.Skipped++
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("store %s: %w", key, err)
		}
		if err := h.Sink.Link(ctx, tx, st.ID, id); err != nil {
			return rep, err
		}
		if id == key {
			rep.Created++
		} else {
			logger.Info("record merged into existing entity", zap.String("id", key), zap.String("into", id))
			rep.Linked++
		}
	}
	rep.State = Stored

	if err := tx.Commit(); err != nil {
		return rep, fmt.Errorf("commit: %w", err)
	}
	committed = true
	rep.State = Committed
	return rep, nil
}

// ResolveSearchTerm returns the row for (term, scope), creating it on first
// use and refreshing its timestamp otherwise.
func ResolveSearchTerm(ctx context.Context, db bun.IDB, term, scope string) (*models.SearchTerm, error) {
	now := time.Now().UTC()
	st := new(models.SearchTerm)

	err := db.NewSelect().
		Model(st).
		Where("term = ?", term).
		Where("scope = ?", scope).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		st = &models.SearchTerm{Term: term, Scope: scope, Timestamp: now}
		if _, err := db.NewInsert().Model(st).Exec(ctx); err != nil {
			return nil, fmt.Errorf("insert search term: %w", err)
		}
		return st, nil
	case err != nil:
		return nil, fmt.Errorf("select search term: %w", err)
	}

	st.Timestamp = now
	if _, err := db.NewUpdate().Model(st).Column("timestamp").WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("refresh search term: %w", err)
	}
	return st, nil
}

func (h *Harvester[R]) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
