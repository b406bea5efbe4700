package dailymed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/blobstore"
	"github.com/mkoziy/biomed-miners/internal/database"
	"github.com/mkoziy/biomed-miners/internal/migrations"
	"github.com/mkoziy/biomed-miners/internal/models"
)

type mockLimiter struct{}

func (mockLimiter) Wait(ctx context.Context) error       { return nil }
func (mockLimiter) RetryAfter(attempt int) time.Duration { return 0 }

const (
	setA = "5d2d0e43-7bc5-4e4a-9c9a-b8d1b4d4b2a1"
	setB = "9a1c6f55-1c2e-4ac8-92c4-1e3f0f2b19d0"
)

type server struct {
	pages   []string
	ndcHits atomic.Int32
	xmlHits atomic.Int32
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/spls.json":
		s.pages = append(s.pages, r.URL.Query().Get("page"))
		fmt.Fprintf(w, `{"data": [
  {"setid": %q, "title": "ASPIRIN 81 MG TABLET", "spl_version": 3, "published_date": "Jan 05, 2024"},
  {"setid": %q, "title": "BAYER ASPIRIN", "spl_version": 12, "published_date": "Mar 14, 2023"}
], "metadata": {"total_elements": 2, "total_pages": 1, "current_page": 1, "elements_per_page": 100}}`, setA, setB)
	case strings.HasSuffix(r.URL.Path, "/ndcs.json"):
		s.ndcHits.Add(1)
		if strings.Contains(r.URL.Path, setA) {
			fmt.Fprint(w, `{"data": {"ndcs": [{"ndc": "0280-2000-10"}, {"ndc": "0280-2000-20"}, {"ndc": "0280-2000-10"}]}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"ndcs": []}}`)
	case strings.HasSuffix(r.URL.Path, ".xml"):
		s.xmlHits.Add(1)
		if strings.Contains(r.URL.Path, setB) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<document><title>ASPIRIN</title></document>`)
	default:
		http.NotFound(w, r)
	}
}

func setup(t *testing.T, handler http.Handler) (*bun.DB, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := baseURL
	baseURL = ts.URL
	t.Cleanup(func() { baseURL = old })

	db, err := database.NewDB(filepath.Join(t.TempDir(), "dailymed.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.Run(context.Background(), db, migrations.New(Schema), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, NewClient(mockLimiter{}, apiclient.Options{MaxRetries: 2}, nil)
}

func TestHarvestArchivesLabels(t *testing.T) {
	srv := &server{}
	db, client := setup(t, srv)
	archive := blobstore.NewLocal(t.TempDir())

	ctx := context.Background()
	rep, err := NewHarvester(db, client, archive, nil, nil).Run(ctx, "aspirin", 50)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if rep.Created != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(srv.pages) != 1 || srv.pages[0] != "1" {
		t.Fatalf("unexpected pages %v", srv.pages)
	}

	var codes []NDC
	if err := db.NewSelect().Model(&codes).Where("set_id = ?", setA).Scan(ctx); err != nil {
		t.Fatalf("select ndcs: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 distinct ndcs, got %+v", codes)
	}

	drug := new(Drug)
	if err := db.NewSelect().Model(drug).Where("set_id = ?", setA).Scan(ctx); err != nil {
		t.Fatalf("select drug: %v", err)
	}
	if models.Deref(drug.LabelKey) != LabelKey(setA) {
		t.Fatalf("unexpected label key %v", models.Deref(drug.LabelKey))
	}
	doc, err := archive.Get(ctx, LabelKey(setA))
	if err != nil || !strings.Contains(string(doc), "ASPIRIN") {
		t.Fatalf("archived label missing: %q (%v)", doc, err)
	}

	other := new(Drug)
	if err := db.NewSelect().Model(other).Where("set_id = ?", setB).Scan(ctx); err != nil {
		t.Fatalf("select drug: %v", err)
	}
	if other.LabelKey != nil {
		t.Fatalf("expected no label key when the document is missing")
	}

	// Known drugs are only re-linked.
	rep, err = NewHarvester(db, client, archive, nil, nil).Run(ctx, "Aspirin ", 50)
	if err != nil {
		t.Fatalf("second harvest: %v", err)
	}
	if rep.Linked != 2 || rep.Created != 0 {
		t.Fatalf("unexpected second report %+v", rep)
	}
	if srv.ndcHits.Load() != 2 || srv.xmlHits.Load() != 2 {
		t.Fatalf("sub-resources refetched: ndc=%d xml=%d", srv.ndcHits.Load(), srv.xmlHits.Load())
	}
}

func TestHarvestWithoutArchive(t *testing.T) {
	srv := &server{}
	db, client := setup(t, srv)

	rep, err := NewHarvester(db, client, nil, nil, nil).Run(context.Background(), "aspirin", 50)
	if err != nil || rep.Created != 2 {
		t.Fatalf("harvest: %+v (%v)", rep, err)
	}
	if srv.xmlHits.Load() != 0 {
		t.Fatalf("label documents fetched without an archive")
	}
}

func TestRolledBackHarvestRemovesArchivedLabels(t *testing.T) {
	srv := &server{}
	db, client := setup(t, srv)
	archive := blobstore.NewLocal(t.TempDir())
	ctx := context.Background()

	// Storing NDC codes fails after the label has been archived.
	if _, err := db.NewDropTable().Model((*NDC)(nil)).Exec(ctx); err != nil {
		t.Fatalf("drop ndcs: %v", err)
	}

	rep, err := NewHarvester(db, client, archive, nil, nil).Run(ctx, "aspirin", 50)
	if err == nil {
		t.Fatalf("expected storage error, got %+v", rep)
	}
	if srv.xmlHits.Load() == 0 {
		t.Fatalf("expected the label to be fetched before the failure")
	}
	if _, err := archive.Get(ctx, LabelKey(setA)); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected orphaned label to be deleted, got %v", err)
	}
}

func TestMapSPLRequiresSetID(t *testing.T) {
	if _, err := MapSPL(SPL{Title: "x"}, nil); err == nil {
		t.Fatalf("expected invalid record error")
	}
}
