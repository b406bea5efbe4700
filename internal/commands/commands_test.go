package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mkoziy/biomed-miners/internal/config"
	"github.com/mkoziy/biomed-miners/internal/database"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:       dir,
		LogLevel:      "error",
		LogFormat:     "json",
		HTTPTimeout:   time.Second,
		BlobBackend:   "local",
		BlobDir:       filepath.Join(dir, "blobs"),
		WatchSchedule: "0 3 * * *",
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := newRoot(&App{load: func() (*config.Config, error) { return cfg, nil }})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateAndSummary(t *testing.T) {
	cfg := testConfig(t)

	if _, err := run(t, cfg, "uniprot", "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(database.Path(cfg.DataDir, "uniprot")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}

	out, err := run(t, cfg, "uniprot", "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"proteins: 0", "search_terms: 0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, cfg, "uniprot", "terms", "P04637")
	if err != nil || out != "" {
		t.Fatalf("terms: %q (%v)", out, err)
	}

	if _, err := run(t, cfg, "uniprot", "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestPubMedRequiresEmailBeforeIO(t *testing.T) {
	cfg := testConfig(t)

	_, err := run(t, cfg, "pubmed", "harvest", "aspirin")
	if !errors.Is(err, config.ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
	if _, err := os.Stat(database.Path(cfg.DataDir, "pubmed")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no database file, got %v", err)
	}
}

func TestInvalidFlagsFailFast(t *testing.T) {
	cfg := testConfig(t)
	cfg.EntrezEmail = "dev@example.org"

	if _, err := run(t, cfg, "openfda", "harvest", "--endpoint", "device", "aspirin"); err == nil {
		t.Fatalf("expected unknown endpoint error")
	}
	if _, err := run(t, cfg, "pubmed", "harvest", "--start-date", "2020-01-01", "aspirin"); err == nil {
		t.Fatalf("expected date format error")
	}
	if _, err := os.Stat(database.Path(cfg.DataDir, "openfda")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no database file, got %v", err)
	}
}

func TestPubMedQuerySummarizesEmptyDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.EntrezEmail = "dev@example.org"

	if _, err := run(t, cfg, "pubmed", "query"); err == nil {
		t.Fatalf("expected error without keyword or flags")
	}
	out, err := run(t, cfg, "pubmed", "query", "--summarize", "aspirin")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, want := range []string{"publications\t0\n", "full_text\t0\t0.0%\n", "pub_date\t-\t-\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("query output missing %q:\n%s", want, out)
		}
	}
}

func TestOrangeBookSummaryReportsStaleData(t *testing.T) {
	out, err := run(t, testConfig(t), "orangebook", "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"products: 0", "patents: 0", "exclusivity: 0", "stale: true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestGeoHarvestWithoutDumpReportsZero(t *testing.T) {
	out, err := run(t, testConfig(t), "geo", "harvest", "aspirin")
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if strings.TrimSpace(out) != "0" {
		t.Fatalf("expected 0, got %q", out)
	}
}

func TestConfigErrorFails(t *testing.T) {
	root := newRoot(&App{load: func() (*config.Config, error) {
		return nil, errors.New("bad env")
	}})
	root.SetArgs([]string{"chembl", "migrate"})
	root.SetOut(&bytes.Buffer{})
	if err := root.ExecuteContext(context.Background()); err == nil || !strings.Contains(err.Error(), "bad env") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestParseJobs(t *testing.T) {
	a := &App{cfg: testConfig(t)}

	jobs, err := a.parseJobs([]string{"chembl:aspirin", " uniprot : TP53 ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(jobs) != 2 || jobs[0].source.name != "chembl" || jobs[1].query != "TP53" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}

	bad := [][]string{
		{"chembl"},
		{"nope:aspirin"},
		{"pubmed:aspirin"},
		nil,
	}
	for _, entries := range bad {
		if _, err := a.parseJobs(entries); err == nil {
			t.Fatalf("expected error for %v", entries)
		}
	}
}

func TestMetricsFileWritten(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "biominer.prom")

	if _, err := run(t, cfg, "--metrics-file", path, "rxnav", "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected metrics file: %v", err)
	}
}
