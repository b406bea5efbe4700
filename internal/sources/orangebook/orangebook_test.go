package orangebook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
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
	productsHeader    = "Ingredient~DF;Route~Trade_Name~Applicant~Strength~Appl_Type~Appl_No~Product_No~TE_Code~Approval_Date~RLD~RS~Type~Applicant_Full_Name\n"
	patentHeader      = "Appl_Type~Appl_No~Product_No~Patent_No~Patent_Expire_Date_Text~Drug_Substance_Flag~Drug_Product_Flag~Patent_Use_Code~Delist_Flag~Submission_Date\n"
	exclusivityHeader = "Appl_Type~Appl_No~Product_No~Exclusivity_Code~Exclusivity_Date\n"
)

var files = map[string]string{
	ProductsFile: productsHeader +
		"ASPIRIN~TABLET;ORAL~BAYER~BAYER~325MG~N~020123~001~~Jan 1, 1982~Yes~Yes~OTC~BAYER HEALTHCARE LLC\n" +
		"ASPIRIN; DIPYRIDAMOLE~CAPSULE;ORAL~AGGRENOX~BOEHRINGER~25MG;200MG~N~020884~001~AB~Nov 22, 1999~Yes~No~RX~BOEHRINGER INGELHEIM\n" +
		"IBUPROFEN~TABLET;ORAL~ADVIL~PFIZER~200MG~N~018989~001\n" +
		"MISSING KEY~TABLET;ORAL~X~Y~1MG~N~~001~~~~~RX~Y\n",
	PatentFile: patentHeader +
		"N~020884~001~6015577~Jul 26, 2017~~Y~U-123~~\n" +
		"N~020884~001~6548283~Jan 18, 2020~Y~~~~\n",
	ExclusivityFile: exclusivityHeader +
		"N~020884~001~ODE-1~Dec 31, 2025\n",
}

func writeFiles(t *testing.T, dir string, contents map[string]string) {
	t.Helper()
	for name, body := range contents {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "orangebook.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.Run(context.Background(), db, migrations.New(Schema), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func count(t *testing.T, db bun.IDB, model any) int {
	t.Helper()
	n, err := db.NewSelect().Model(model).Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestReadTable(t *testing.T) {
	rows, err := ReadTable(strings.NewReader("\ufeffA~B~C\r\n\n1~\"quoted~3\nshort\n"))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	want := []Row{
		{"A": "1", "B": `"quoted`, "C": "3"},
		{"A": "short"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadTable(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestImportLoadsAllTables(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, files)
	db := openDB(t)
	ctx := context.Background()

	c, err := Import(ctx, db, dir, true, nil)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if diff := cmp.Diff(Counts{Products: 3, Patents: 2, Exclusivity: 1, Skipped: 1}, c); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}

	p := new(Product)
	if err := db.NewSelect().Model(p).Where("appl_no = ?", "020123").Scan(ctx); err != nil {
		t.Fatalf("select product: %v", err)
	}
	if models.Deref(p.TradeName) != "BAYER" || models.Deref(p.DFRoute) != "TABLET;ORAL" || p.TECode != nil {
		t.Fatalf("unexpected product %+v", p)
	}
	if p.ApplNo != "020123" {
		t.Fatalf("leading zeros lost: %q", p.ApplNo)
	}

	// A second refresh replaces rather than duplicates.
	if _, err := Import(ctx, db, dir, true, nil); err != nil {
		t.Fatalf("second import: %v", err)
	}
	if n := count(t, db, (*Patent)(nil)); n != 2 {
		t.Fatalf("expected 2 patents, got %d", n)
	}
}

func TestImportWithoutRefreshMerges(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, files)
	db := openDB(t)
	ctx := context.Background()

	if _, err := Import(ctx, db, dir, true, nil); err != nil {
		t.Fatalf("import: %v", err)
	}

	writeFiles(t, dir, map[string]string{
		ProductsFile: productsHeader +
			"ASPIRIN; DIPYRIDAMOLE~CAPSULE;ORAL~AGGRENOX~BOEHRINGER~25MG;200MG~N~020884~001~AB~Nov 22, 1999~Yes~Yes~RX~BOEHRINGER INGELHEIM\n",
		PatentFile:      patentHeader + "N~020884~001~6015577~Jul 26, 2017~~Y~U-123~~\n",
		ExclusivityFile: exclusivityHeader,
	})
	if _, err := Import(ctx, db, dir, false, nil); err != nil {
		t.Fatalf("merge import: %v", err)
	}

	if n := count(t, db, (*Product)(nil)); n != 3 {
		t.Fatalf("expected products kept, got %d", n)
	}
	if n := count(t, db, (*Patent)(nil)); n != 1 {
		t.Fatalf("expected replaced patents, got %d", n)
	}
	if n := count(t, db, (*Exclusivity)(nil)); n != 0 {
		t.Fatalf("expected replaced exclusivity, got %d", n)
	}
	p := new(Product)
	if err := db.NewSelect().Model(p).Where("appl_no = ?", "020884").Scan(ctx); err != nil {
		t.Fatalf("select product: %v", err)
	}
	if models.Deref(p.RS) != "Yes" {
		t.Fatalf("expected updated product, got rs=%q", models.Deref(p.RS))
	}
}

func TestFailedImportLeavesTablesUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, files)
	db := openDB(t)
	ctx := context.Background()

	if _, err := Import(ctx, db, dir, true, nil); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := db.NewDropTable().Model((*Exclusivity)(nil)).Exec(ctx); err != nil {
		t.Fatalf("drop exclusivity: %v", err)
	}

	if _, err := Import(ctx, db, dir, true, nil); err == nil {
		t.Fatalf("expected import error")
	}
	if n := count(t, db, (*Product)(nil)); n != 3 {
		t.Fatalf("expected products to survive the failed import, got %d", n)
	}
	if n := count(t, db, (*Patent)(nil)); n != 2 {
		t.Fatalf("expected patents to survive the failed import, got %d", n)
	}
}

func TestImportRequiresAllFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{ProductsFile: files[ProductsFile]})
	if _, err := Import(context.Background(), openDB(t), dir, true, nil); err == nil {
		t.Fatalf("expected error for missing patent file")
	}
}

func TestFindProducts(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, files)
	db := openDB(t)
	ctx := context.Background()
	if _, err := Import(ctx, db, dir, true, nil); err != nil {
		t.Fatalf("import: %v", err)
	}

	rows, err := FindProducts(ctx, db, "aspirin", 0)
	if err != nil {
		t.Fatalf("find products: %v", err)
	}
	type listing struct {
		ApplNo               string
		Patents, Exclusivity int
	}
	var got []listing
	for _, r := range rows {
		got = append(got, listing{r.ApplNo, r.Patents, r.Exclusivity})
	}
	want := []listing{{"020123", 0, 0}, {"020884", 2, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("listings mismatch (-want +got):\n%s", diff)
	}

	rows, err = FindProducts(ctx, db, "advil", 0)
	if err != nil || len(rows) != 1 || rows[0].ApplNo != "018989" {
		t.Fatalf("expected trade name match, got %+v (%v)", rows, err)
	}
}

func zipped(t *testing.T, contents map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range contents {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func serve(t *testing.T, body []byte) (*atomic.Int32, *atomic.Value) {
	t.Helper()
	var (
		hits atomic.Int32
		ua   atomic.Value
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != downloadPath {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		ua.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write(body)
	}))
	t.Cleanup(ts.Close)

	old := baseURL
	baseURL = ts.URL
	t.Cleanup(func() { baseURL = old })
	return &hits, &ua
}

func TestDownloadExtractsDataFiles(t *testing.T) {
	withExtra := map[string]string{"README.txt": "ignored"}
	for k, v := range files {
		withExtra[k] = v
	}
	body := zipped(t, withExtra)
	hits, ua := serve(t, body)

	dir := filepath.Join(t.TempDir(), Name)
	archive := blobstore.NewLocal(t.TempDir())
	d := NewDownloader(mockLimiter{}, apiclient.Options{MaxRetries: 2}, archive, nil)
	ctx := context.Background()

	if !Stale(dir, MaxAge, time.Now()) {
		t.Fatalf("expected missing data to be stale")
	}
	if err := d.EnsureFresh(ctx, dir, false); err != nil {
		t.Fatalf("download: %v", err)
	}
	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s mismatch", name)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != len(files) {
		t.Fatalf("expected only the data files, got %v", entries)
	}
	if got := ua.Load().(string); got != userAgent {
		t.Fatalf("unexpected user agent %q", got)
	}
	stored, err := archive.Get(ctx, ArchiveKey)
	if err != nil || !bytes.Equal(stored, body) {
		t.Fatalf("archived zip missing (%v)", err)
	}

	// Fresh files are not downloaded again unless forced.
	if err := d.EnsureFresh(ctx, dir, false); err != nil {
		t.Fatalf("second download: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected fresh data to be kept, got %d requests", hits.Load())
	}
	if err := d.EnsureFresh(ctx, dir, true); err != nil || hits.Load() != 2 {
		t.Fatalf("expected forced download, got %d requests (%v)", hits.Load(), err)
	}
}

func TestStaleAfterMaxAge(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, files)
	now := time.Now()
	if Stale(dir, MaxAge, now) {
		t.Fatalf("expected new files to be fresh")
	}
	old := now.Add(-MaxAge - time.Hour)
	if err := os.Chtimes(filepath.Join(dir, ProductsFile), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if !Stale(dir, MaxAge, now) {
		t.Fatalf("expected old files to be stale")
	}
}

func TestDownloadRejectsArchiveWithoutDataFiles(t *testing.T) {
	serve(t, zipped(t, map[string]string{ProductsFile: files[ProductsFile]}))
	d := NewDownloader(mockLimiter{}, apiclient.Options{MaxRetries: 1}, nil, nil)
	dir := t.TempDir()

	err := d.Download(context.Background(), dir)
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("expected ErrMissingFile, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "EOBZIP.zip")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected zip to be removed, got %v", err)
	}
}

func TestDownloadUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	old := baseURL
	baseURL = ts.URL
	defer func() { baseURL = old }()

	d := NewDownloader(mockLimiter{}, apiclient.Options{MaxRetries: 1}, nil, nil)
	if err := d.Download(context.Background(), t.TempDir()); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
