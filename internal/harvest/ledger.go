package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/models"
)

// Ledger records harvest calls in the run database. It never writes to the
// source database, so a failed harvest leaves no trace there.
type Ledger struct {
	DB     bun.IDB
	Logger *zap.Logger
}

// Track wraps r so that every Run is recorded under source.
func (l *Ledger) Track(source string, r Runner) Runner {
	return &trackedRunner{ledger: l, source: source, next: r}
}

type trackedRunner struct {
	ledger *Ledger
	source string
	next   Runner
}

func (t *trackedRunner) Run(ctx context.Context, query string, maxRecords int) (Report, error) {
	logger := t.ledger.logger().With(zap.String("source", t.source))

	run, err := t.ledger.start(ctx, t.source, Normalize(query))
	if err != nil {
		logger.Warn("record harvest start", zap.Error(err))
	}

	rep, runErr := t.next.Run(ctx, query, maxRecords)

	if run != nil {
		if err := t.ledger.finish(context.WithoutCancel(ctx), run, rep, runErr); err != nil {
			logger.Warn("record harvest outcome", zap.Error(err))
		}
	}
	return rep, runErr
}

func (l *Ledger) start(ctx context.Context, source, term string) (*models.HarvestRun, error) {
	run := &models.HarvestRun{
		RunID:     uuid.NewString(),
		Source:    source,
		Query:     term,
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if _, err := l.DB.NewInsert().Model(run).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert harvest run: %w", err)
	}
	return run, nil
}

func (l *Ledger) finish(ctx context.Context, run *models.HarvestRun, rep Report, runErr error) error {
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Fetched = rep.Fetched
	run.Created = rep.Created
	run.Linked = rep.Linked
	run.Skipped = rep.Skipped
	run.Status = models.RunCommitted
	if runErr != nil {
		msg := runErr.Error()
		run.Status = models.RunFailed
		run.Error = &msg
	}
	_, err := l.DB.NewUpdate().Model(run).WherePK().Exec(ctx)
	return err
}

func (l *Ledger) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}
