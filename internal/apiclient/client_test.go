package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type mockLimiter struct{}

func (mockLimiter) Wait(ctx context.Context) error       { return nil }
func (mockLimiter) RetryAfter(attempt int) time.Duration { return 0 }

func newTestClient(ts *httptest.Server, maxRetries int) *Client {
	return New(mockLimiter{}, Options{BaseURL: ts.URL, MaxRetries: maxRetries}, nil)
}

func TestGetJSONRecoversAfterTransientFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"aspirin"}`))
	}))
	defer ts.Close()

	var out struct {
		Name string `json:"name"`
	}
	resp, err := newTestClient(ts, 3).GetJSON(context.Background(), "/lookup", nil, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatalf("expected data on third attempt")
	}
	if out.Name != "aspirin" {
		t.Fatalf("expected decoded name, got %q", out.Name)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

func TestGetReturnsNilAfterMaxRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	var outcomes []string
	client := New(mockLimiter{}, Options{
		BaseURL:    ts.URL,
		MaxRetries: 5,
		OnAttempt:  func(o string) { outcomes = append(outcomes, o) },
	}, nil)

	resp, err := client.Get(context.Background(), "/boom", nil)
	if err != nil {
		t.Fatalf("expected degrade without error, got %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response")
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Fatalf("expected 5 attempts, got %d", got)
	}
	if len(outcomes) != 5 || outcomes[4] != OutcomeTransient {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func TestGetNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	resp, err := newTestClient(ts, 3).Get(context.Background(), "/missing", nil)
	if err != nil || resp != nil {
		t.Fatalf("expected nil, nil; got %v, %v", resp, err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestGetClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	resp, _ := newTestClient(ts, 3).Get(context.Background(), "/bad", nil)
	if resp != nil {
		t.Fatalf("expected nil response")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestGetJSONRetriesUndecodableBody(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"truncated`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	resp, err := newTestClient(ts, 3).GetJSON(context.Background(), "/x", nil, &out)
	if err != nil || resp == nil || !out.OK {
		t.Fatalf("expected decoded body on retry; resp=%v err=%v", resp, err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestGetMergesDefaultParams(t *testing.T) {
	var got url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	client := New(mockLimiter{}, Options{
		BaseURL: ts.URL,
		Params:  url.Values{"tool": {"biominer"}},
	}, nil)

	resp, err := client.Get(context.Background(), "/esearch.fcgi", url.Values{"term": {"aspirin"}})
	if err != nil || resp == nil {
		t.Fatalf("expected response, got %v %v", resp, err)
	}
	if got.Get("tool") != "biominer" || got.Get("term") != "aspirin" {
		t.Fatalf("unexpected query %v", got)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestGetStopsOnCancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(ts, 3).Get(ctx, "/x", nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNextLink(t *testing.T) {
	h := http.Header{}
	h.Add("Link", `<https://rest.uniprot.org/uniprotkb/search?cursor=abc&size=2>; rel="next"`)
	if got := NextLink(h); got != "https://rest.uniprot.org/uniprotkb/search?cursor=abc&size=2" {
		t.Fatalf("unexpected next link %q", got)
	}

	h = http.Header{}
	h.Add("Link", `<https://example.org/a>; rel="prev"`)
	if got := NextLink(h); got != "" {
		t.Fatalf("expected no next link, got %q", got)
	}
}

func TestDownloadStreamsToFile(t *testing.T) {
	body := strings.Repeat("GSE1\tprotein kinase\n", 4096)
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	dst := filepath.Join(t.TempDir(), "dump", "file.gz")
	resp, err := newTestClient(ts, 3).Download(context.Background(), "/file.gz", nil, dst)
	if err != nil || resp == nil {
		t.Fatalf("download: %v (%v)", resp, err)
	}
	if resp.Size != int64(len(body)) || len(resp.Body) != 0 {
		t.Fatalf("expected %d streamed bytes and no buffered body, got size %d body %d", len(body), resp.Size, len(resp.Body))
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Fatalf("downloaded file differs from body")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected a retry after the 502, got %d calls", calls)
	}
}

func TestDownloadNotFoundWritesNothing(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	dir := t.TempDir()
	resp, err := newTestClient(ts, 3).Download(context.Background(), "/missing.gz", nil, filepath.Join(dir, "missing.gz"))
	if err != nil || resp != nil {
		t.Fatalf("expected nil response, got %v (%v)", resp, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty dir, got %v (%v)", entries, err)
	}
}
