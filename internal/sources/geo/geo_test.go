package geo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
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

func str(s string) *string { return &s }

// fakeDump builds a small gse table in its own database file.
func fakeDump(t *testing.T, rows []GSE) *bun.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), DumpFile), false)
	if err != nil {
		t.Fatalf("open dump: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if _, err := db.NewCreateTable().Model((*GSE)(nil)).Exec(ctx); err != nil {
		t.Fatalf("create gse: %v", err)
	}
	if len(rows) > 0 {
		if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
			t.Fatalf("insert gse: %v", err)
		}
	}
	return db
}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "geo.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.Run(context.Background(), db, migrations.New(Schema), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestHarvestSearchesDump(t *testing.T) {
	var rows []GSE
	for i := 1; i <= 7; i++ {
		rows = append(rows, GSE{
			GSE:            fmt.Sprintf("GSE%d", 100+i),
			Title:          str(fmt.Sprintf("Aspirin exposure study %d", i)),
			SubmissionDate: str("2010-03-04"),
		})
	}
	rows = append(rows,
		GSE{GSE: "GSE900", Title: str("Unrelated"), Summary: str("Response to ASPIRIN in mice"), PubmedID: str("12345")},
		GSE{GSE: "GSE901", Title: str("Unrelated"), Summary: str("Nothing here")},
		GSE{GSE: "GSE902", Title: str("100% aspirin_free")},
	)
	dump := fakeDump(t, rows)
	db := openDB(t)

	searcher := NewSearcher(dump, nil)
	res, err := searcher.Fetch(context.Background(), "aspirin", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Records) != 9 || res.Total != 9 {
		t.Fatalf("expected 9 matches, got %d (total %d)", len(res.Records), res.Total)
	}

	ctx := context.Background()
	rep, err := NewHarvester(db, searcher, nil, nil).Run(ctx, "Aspirin", 5)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if rep.Created != 5 || rep.Fetched != 5 {
		t.Fatalf("unexpected report %+v", rep)
	}

	rep, err = NewHarvester(db, searcher, nil, nil).Run(ctx, "aspirin", 0)
	if err != nil {
		t.Fatalf("second harvest: %v", err)
	}
	if rep.Created != 4 || rep.Linked != 5 {
		t.Fatalf("unexpected second report %+v", rep)
	}

	s := new(Series)
	if err := db.NewSelect().Model(s).Where("gse = ?", "GSE900").Scan(ctx); err != nil {
		t.Fatalf("select series: %v", err)
	}
	if models.Deref(s.PubmedID) != "12345" {
		t.Fatalf("unexpected pubmed id %v", models.Deref(s.PubmedID))
	}

	first := new(Series)
	if err := db.NewSelect().Model(first).Where("gse = ?", "GSE101").Scan(ctx); err != nil {
		t.Fatalf("select series: %v", err)
	}
	if first.SubmissionDate == nil || first.SubmissionDate.Format("2006-01-02") != "2010-03-04" {
		t.Fatalf("unexpected submission date %v", first.SubmissionDate)
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	dump := fakeDump(t, []GSE{
		{GSE: "GSE1", Title: str("100% pure")},
		{GSE: "GSE2", Title: str("1000 samples")},
	})
	rows, total, err := NewSearcher(dump, nil).Search(context.Background(), "100%", 0, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].GSE != "GSE1" {
		t.Fatalf("unexpected rows %+v (total %d)", rows, total)
	}
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDownloadExtractsAndArchives(t *testing.T) {
	payload := []byte("SQLite format 3\x00fake")
	body := gzipped(t, payload)
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != dumpPath {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	dir := t.TempDir()
	archive := blobstore.NewLocal(t.TempDir())
	d := NewDownloader(mockLimiter{}, apiclient.Options{MaxRetries: 2}, archive, nil)

	ctx := context.Background()
	path, err := d.Download(ctx, dir, false)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Fatalf("dump mismatch (-want +got):\n%s", diff)
	}
	stored, err := archive.Get(ctx, ArchiveKey)
	if err != nil || !bytes.Equal(stored, body) {
		t.Fatalf("archived dump missing (%v)", err)
	}

	if _, err := d.Download(ctx, dir, false); err != nil {
		t.Fatalf("second download: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected existing dump to be kept, got %d requests", hits.Load())
	}
	if _, err := os.Stat(path + ".gz"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected compressed download to be removed, got %v", err)
	}
}

func TestDownloadRejectsCorruptArchive(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not gzip"))
	}))
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	dir := t.TempDir()
	d := NewDownloader(mockLimiter{}, apiclient.Options{MaxRetries: 2}, nil, nil)
	if _, err := d.Download(context.Background(), dir, false); err == nil {
		t.Fatalf("expected gzip error")
	}
	if _, err := os.Stat(filepath.Join(dir, DumpFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no dump after a failed extract, got %v", err)
	}
}

func TestDownloadUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	d := NewDownloader(mockLimiter{}, apiclient.Options{MaxRetries: 2}, nil, nil)
	_, err := d.Download(context.Background(), t.TempDir(), false)
	if !errors.Is(err, ErrDumpUnavailable) {
		t.Fatalf("expected ErrDumpUnavailable, got %v", err)
	}
}

func TestMapGSERequiresAccession(t *testing.T) {
	if _, err := MapGSE(GSE{GSE: " "}); err == nil {
		t.Fatalf("expected error for missing accession")
	}
}
