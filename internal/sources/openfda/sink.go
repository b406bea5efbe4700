package openfda

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/harvest"
)

// entitySink stores one endpoint's records. None of the endpoints have
// sub-resources, so Store never calls the API.
type entitySink[R any] struct {
	key    func(R) string
	model  any
	column string
	link   func(searchID int64, id string) any
	save   func(ctx context.Context, db bun.IDB, rec R) (string, error)
}

func (s entitySink[R]) Key(rec R) string { return strings.TrimSpace(s.key(rec)) }

func (s entitySink[R]) Existing(ctx context.Context, db bun.IDB, ids []string) (map[string]bool, error) {
	return harvest.ExistingIDs(ctx, db, s.model, s.column, ids)
}

func (s entitySink[R]) Link(ctx context.Context, db bun.IDB, searchID int64, id string) error {
	return harvest.LinkRow(ctx, db, s.link(searchID, id))
}

func (s entitySink[R]) Store(ctx context.Context, db bun.IDB, rec R) (string, error) {
	return s.save(ctx, db, rec)
}

var eventSink = entitySink[EventRecord]{
	key:    func(r EventRecord) string { return r.SafetyReportID.String() },
	model:  (*DrugEvent)(nil),
	column: "safetyreportid",
	link: func(searchID int64, id string) any {
		return &SearchToEvent{SearchID: searchID, SafetyReportID: id}
	},
	save: func(ctx context.Context, db bun.IDB, r EventRecord) (string, error) {
		b, err := MapEvent(r)
		if err != nil {
			return "", err
		}
		return b.Event.SafetyReportID, SaveEvent(ctx, db, b)
	},
}

var labelSink = entitySink[LabelRecord]{
	key:    labelKey,
	model:  (*DrugLabel)(nil),
	column: "id",
	link: func(searchID int64, id string) any {
		return &SearchToLabel{SearchID: searchID, LabelID: id}
	},
	save: func(ctx context.Context, db bun.IDB, r LabelRecord) (string, error) {
		m, err := MapLabel(r)
		if err != nil {
			return "", err
		}
		return m.ID, harvest.Upsert(ctx, db, m, "id")
	},
}

var ndcSink = entitySink[NDCRecord]{
	key:    func(r NDCRecord) string { return r.ProductID },
	model:  (*DrugNDC)(nil),
	column: "product_id",
	link: func(searchID int64, id string) any {
		return &SearchToNDC{SearchID: searchID, ProductID: id}
	},
	save: func(ctx context.Context, db bun.IDB, r NDCRecord) (string, error) {
		m, err := MapNDC(r)
		if err != nil {
			return "", err
		}
		return m.ProductID, harvest.Upsert(ctx, db, m, "product_id")
	},
}

var enforcementSink = entitySink[EnforcementRecord]{
	key:    func(r EnforcementRecord) string { return r.RecallNumber },
	model:  (*DrugEnforcement)(nil),
	column: "recall_number",
	link: func(searchID int64, id string) any {
		return &SearchToEnforcement{SearchID: searchID, RecallNumber: id}
	},
	save: func(ctx context.Context, db bun.IDB, r EnforcementRecord) (string, error) {
		m, err := MapEnforcement(r)
		if err != nil {
			return "", err
		}
		return m.RecallNumber, harvest.Upsert(ctx, db, m, "recall_number")
	},
}

var applicationSink = entitySink[ApplicationRecord]{
	key:    func(r ApplicationRecord) string { return r.ApplicationNumber },
	model:  (*DrugAtFDA)(nil),
	column: "application_number",
	link: func(searchID int64, id string) any {
		return &SearchToDrugsFDA{SearchID: searchID, ApplicationNumber: id}
	},
	save: func(ctx context.Context, db bun.IDB, r ApplicationRecord) (string, error) {
		m, err := MapApplication(r)
		if err != nil {
			return "", err
		}
		return m.ApplicationNumber, harvest.Upsert(ctx, db, m, "application_number")
	},
}

// SaveEvent upserts a report and replaces its drugs and reactions.
func SaveEvent(ctx context.Context, db bun.IDB, b *EventBundle) error {
	id := b.Event.SafetyReportID
	if err := harvest.Upsert(ctx, db, b.Event, "safetyreportid"); err != nil {
		return err
	}
	if err := harvest.ReplaceChildren(ctx, db, "safetyreportid", id, b.Drugs); err != nil {
		return err
	}
	return harvest.ReplaceChildren(ctx, db, "safetyreportid", id, b.Reactions)
}

func newHarvester[R any](db *bun.DB, ep Endpoint, c *Client, sink harvest.Sink[R], logger *zap.Logger, rec harvest.Recorder) *harvest.Harvester[R] {
	return &harvest.Harvester[R]{
		Source:   Name,
		Scope:    string(ep),
		DB:       db,
		Fetch:    fetcher[R](c, ep),
		Sink:     sink,
		Logger:   logger,
		Recorder: rec,
	}
}

// NewHarvester returns the harvester for one endpoint. Search terms are
// scoped by endpoint.
func NewHarvester(db *bun.DB, client *Client, ep Endpoint, logger *zap.Logger, rec harvest.Recorder) (harvest.Runner, error) {
	switch ep {
	case Events:
		return newHarvester[EventRecord](db, ep, client, eventSink, logger, rec), nil
	case Labels:
		return newHarvester[LabelRecord](db, ep, client, labelSink, logger, rec), nil
	case NDC:
		return newHarvester[NDCRecord](db, ep, client, ndcSink, logger, rec), nil
	case Enforcement:
		return newHarvester[EnforcementRecord](db, ep, client, enforcementSink, logger, rec), nil
	case DrugsFDA:
		return newHarvester[ApplicationRecord](db, ep, client, applicationSink, logger, rec), nil
	default:
		return nil, fmt.Errorf("unknown openfda endpoint %q", ep)
	}
}
