package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/database"
	"github.com/mkoziy/biomed-miners/internal/harvest"
	"github.com/mkoziy/biomed-miners/internal/migrations"
	"github.com/mkoziy/biomed-miners/internal/models"
)

type link struct {
	bun.BaseModel `bun:"table:search_to_things"`

	SearchID int64  `bun:"search_id,pk"`
	ThingID  string `bun:"thing_id,pk"`
}

func setup(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "repo.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	schema := migrations.Schema{Models: []interface{}{(*link)(nil)}}
	if err := migrations.Run(context.Background(), db, migrations.New(schema), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupRuns(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.OpenRuns(t.TempDir(), false)
	if err != nil {
		t.Fatalf("open runs db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.Run(context.Background(), db, migrations.Runs(), zap.NewNop()); err != nil {
		t.Fatalf("migrate runs: %v", err)
	}
	return db
}

func TestRunsByStatus(t *testing.T) {
	db := setupRuns(t)
	ctx := context.Background()

	now := time.Now().UTC()
	runs := []models.HarvestRun{
		{RunID: "a", Source: "x", Query: "q", Status: models.RunCommitted, StartedAt: now},
		{RunID: "b", Source: "x", Query: "q", Status: models.RunCommitted, StartedAt: now},
		{RunID: "c", Source: "x", Query: "q", Status: models.RunFailed, StartedAt: now},
		{RunID: "d", Source: "y", Query: "q", Status: models.RunFailed, StartedAt: now},
	}
	if _, err := db.NewInsert().Model(&runs).Exec(ctx); err != nil {
		t.Fatalf("insert runs: %v", err)
	}

	counts, err := RunsByStatus(ctx, db, "x")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	want := []StatusCount{{Status: models.RunCommitted, N: 2}, {Status: models.RunFailed, N: 1}}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}

	failed, err := RecentRuns(ctx, db, "x", models.RunFailed, 10)
	if err != nil || len(failed) != 1 || failed[0].RunID != "c" {
		t.Fatalf("unexpected failed runs %+v (%v)", failed, err)
	}
	all, err := RecentRuns(ctx, db, "x", "", 2)
	if err != nil || len(all) != 2 || all[0].RunID != "c" {
		t.Fatalf("unexpected recent runs %+v (%v)", all, err)
	}
}

func TestSearchTermsFor(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	for _, term := range []string{"tp53", "aspirin"} {
		st, err := harvest.ResolveSearchTerm(ctx, db, term, "")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if err := harvest.LinkRow(ctx, db, &link{SearchID: st.ID, ThingID: "T1"}); err != nil {
			t.Fatalf("link: %v", err)
		}
	}

	terms, err := SearchTermsFor(ctx, db, "search_to_things", "thing_id", "T1")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	got := make([]string, 0, len(terms))
	for _, st := range terms {
		got = append(got, st.Term)
	}
	if diff := cmp.Diff([]string{"aspirin", "tp53"}, got); diff != "" {
		t.Fatalf("terms mismatch (-want +got):\n%s", diff)
	}

	recent, err := RecentSearchTerms(ctx, db, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("unexpected recent terms %+v (%v)", recent, err)
	}
}
