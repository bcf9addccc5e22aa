package toolcontext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/toolcontext/budget"
	"github.com/jonwraymond/toolcontext/config"
)

// docsUpstream is a fake documentation provider counting requests per
// library path.
type docsUpstream struct {
	mu     sync.Mutex
	calls  map[string]int
	status int
	body   func(library, topic string) string
}

func newDocsUpstream() *docsUpstream {
	return &docsUpstream{
		calls:  make(map[string]int),
		status: http.StatusOK,
		body: func(library, topic string) string {
			if topic != "" {
				return "docs for " + library + "/" + topic
			}
			return "docs for " + library
		},
	}
}

func (u *docsUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		library := strings.TrimPrefix(r.URL.Path, "/v1/docs/")
		topic := r.URL.Query().Get("topic")

		u.mu.Lock()
		key := library
		if topic != "" {
			key += "/" + topic
		}
		u.calls[key]++
		status := u.status
		u.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(u.body(library, topic)))
	}
}

func (u *docsUpstream) callCount(key string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[key]
}

func (u *docsUpstream) setStatus(status int) {
	u.mu.Lock()
	u.status = status
	u.mu.Unlock()
}

func newTestConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source.BaseURL = baseURL
	cfg.Lookup.FetchTimeout = 2 * time.Second
	cfg.Refresh.InitialDelay = time.Millisecond
	cfg.Refresh.MaxDelay = 5 * time.Millisecond
	return &cfg
}

func TestService_RequestDocsFetchesAndAssembles(t *testing.T) {
	upstream := newDocsUpstream()
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	svc, err := New(newTestConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	out, err := svc.RequestDocs(ctx, "reviewer", []DocRequest{
		{Library: "react", Topic: "hooks", Priority: 1},
		{Library: "django", Priority: 2},
	})
	if err != nil {
		t.Fatalf("RequestDocs failed: %v", err)
	}

	if !strings.Contains(out, "# react/hooks") || !strings.Contains(out, "docs for react/hooks") {
		t.Errorf("output missing react section:\n%s", out)
	}
	if !strings.Contains(out, "# django") || !strings.Contains(out, "docs for django") {
		t.Errorf("output missing django section:\n%s", out)
	}

	// A repeat request is served from cache without new upstream calls.
	if _, err := svc.RequestDocs(ctx, "reviewer", []DocRequest{
		{Library: "react", Topic: "hooks", Priority: 1},
	}); err != nil {
		t.Fatalf("second RequestDocs failed: %v", err)
	}
	if got := upstream.callCount("react/hooks"); got != 1 {
		t.Errorf("upstream called %d times for cached key, want 1", got)
	}
}

func TestService_RequestDocsRespectsAgentCap(t *testing.T) {
	upstream := newDocsUpstream()
	upstream.body = func(library, topic string) string {
		return strings.Repeat("x", 20000)
	}
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	cfg := newTestConfig(server.URL)
	cfg.Budget.Caps = map[string]int{"reviewer": 3000}

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Close()

	out, err := svc.RequestDocs(context.Background(), "reviewer", []DocRequest{
		{Library: "react", Priority: 1},
	})
	if err != nil {
		t.Fatalf("RequestDocs failed: %v", err)
	}

	est := budget.HeuristicEstimator{}
	if got := est.Estimate(out); got > 3000 {
		t.Errorf("output estimates at %d tokens, cap is 3000", got)
	}
	if !strings.Contains(out, budget.TruncationMarker) {
		t.Error("oversized content should carry the truncation marker")
	}
}

func TestService_StaleContentLabeledAndRefreshed(t *testing.T) {
	upstream := newDocsUpstream()
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	cfg := newTestConfig(server.URL)
	// Entries for react go stale immediately.
	cfg.Cache.Overrides = map[string]time.Duration{"react": time.Nanosecond}

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	svc.Start(ctx)

	if _, err := svc.RequestDocs(ctx, "reviewer", []DocRequest{{Library: "react", Priority: 1}}); err != nil {
		t.Fatalf("first RequestDocs failed: %v", err)
	}

	out, err := svc.RequestDocs(ctx, "reviewer", []DocRequest{{Library: "react", Priority: 1}})
	if err != nil {
		t.Fatalf("second RequestDocs failed: %v", err)
	}
	if !strings.Contains(out, "may be outdated") {
		t.Errorf("stale content should be labeled:\n%s", out)
	}
	if !strings.Contains(out, "docs for react") {
		t.Error("stale hit must still serve the cached content")
	}

	// The background pool picks up the queued refresh.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if upstream.callCount("react") >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("stale hit never triggered a background refresh")
}

func TestService_UpstreamFailureYieldsPlaceholder(t *testing.T) {
	upstream := newDocsUpstream()
	upstream.setStatus(http.StatusNotFound)
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	svc, err := New(newTestConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Close()

	out, err := svc.RequestDocs(context.Background(), "reviewer", []DocRequest{
		{Library: "ghost", Priority: 1},
	})
	if err != nil {
		t.Fatalf("RequestDocs must not fail on upstream errors, got %v", err)
	}
	if !strings.Contains(out, "unavailable") {
		t.Errorf("output should carry a placeholder section:\n%s", out)
	}
}

func TestService_RequestDocsRejectsInvalidKey(t *testing.T) {
	upstream := newDocsUpstream()
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	svc, err := New(newTestConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Close()

	if _, err := svc.RequestDocs(context.Background(), "reviewer", []DocRequest{{Library: ""}}); err == nil {
		t.Error("RequestDocs with an empty library should fail")
	}
}

func TestService_CoverageEndpoint(t *testing.T) {
	upstream := newDocsUpstream()
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	cfg := newTestConfig(server.URL)
	cfg.Required = []string{"react"}

	svc, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Close()

	ops := httptest.NewServer(svc.Handler())
	defer ops.Close()

	resp, err := http.Get(ops.URL + "/coverage")
	if err != nil {
		t.Fatalf("GET /coverage failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("coverage before any fetch = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	if _, err := svc.RequestDocs(context.Background(), "reviewer", []DocRequest{{Library: "react", Priority: 1}}); err != nil {
		t.Fatalf("RequestDocs failed: %v", err)
	}

	resp, err = http.Get(ops.URL + "/coverage")
	if err != nil {
		t.Fatalf("GET /coverage failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("coverage after fetch = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	report, err := svc.Coverage(context.Background())
	if err != nil {
		t.Fatalf("Coverage failed: %v", err)
	}
	if report.CoveragePercent != 100 {
		t.Errorf("CoveragePercent = %v, want 100", report.CoveragePercent)
	}
}

func TestService_InvalidateForcesRefetch(t *testing.T) {
	upstream := newDocsUpstream()
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	svc, err := New(newTestConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	req := []DocRequest{{Library: "react", Priority: 1}}
	if _, err := svc.RequestDocs(ctx, "a", req); err != nil {
		t.Fatalf("RequestDocs failed: %v", err)
	}
	if err := svc.Invalidate(ctx, "react", ""); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := svc.RequestDocs(ctx, "a", req); err != nil {
		t.Fatalf("RequestDocs failed: %v", err)
	}
	if got := upstream.callCount("react"); got != 2 {
		t.Errorf("upstream called %d times, want 2 after invalidation", got)
	}
}

func TestService_CloseIdempotent(t *testing.T) {
	upstream := newDocsUpstream()
	server := httptest.NewServer(upstream.handler())
	defer server.Close()

	svc, err := New(newTestConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	svc.Start(context.Background())

	if err := svc.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
