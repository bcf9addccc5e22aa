package toolcontext

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonwraymond/toolcontext/budget"
	"github.com/jonwraymond/toolcontext/cache"
	"github.com/jonwraymond/toolcontext/config"
	"github.com/jonwraymond/toolcontext/lookup"
	"github.com/jonwraymond/toolcontext/observe"
	"github.com/jonwraymond/toolcontext/refresh"
	"github.com/jonwraymond/toolcontext/report"
	"github.com/jonwraymond/toolcontext/source"
)

// DocRequest names one piece of documentation an agent wants in its
// context. Priority orders both context assembly and background
// refresh; lower is more important.
type DocRequest struct {
	Library  string
	Topic    string
	Priority int
}

// Service is the façade over the documentation cache. Construct with
// New, call Start to launch background refresh, and Close on shutdown.
type Service struct {
	store     cache.Store
	policy    cache.Policy
	clock     cache.Clock
	queue     *refresh.Queue
	pool      *refresh.Pool
	lookups   *lookup.Service
	builder   *budget.Builder
	allocator *budget.Allocator
	reporter  *report.Reporter
	required  []cache.Key
	log       observe.Logger
	stats     observe.Metrics

	mu      sync.Mutex
	started bool
	closed  bool
}

// New builds a service from configuration. A nil config uses defaults;
// a nil observer disables telemetry. The returned service owns the
// cache store and closes it in Close.
func New(cfg *config.Config, obs observe.Observer) (*Service, error) {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	if obs == nil {
		obs = observe.Noop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store cache.Store
	var err error
	switch cfg.Cache.Backend {
	case "sqlite":
		store, err = cache.OpenSQLiteStore(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("toolcontext: opening cache store: %w", err)
		}
	default:
		store = cache.NewMemoryStore()
	}

	creds, err := source.NewCredentials(cfg.Source.APIKey)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("toolcontext: parsing credentials: %w", err)
	}
	src, err := source.NewHTTPSource(source.HTTPConfig{
		BaseURL:     cfg.Source.BaseURL,
		Credentials: creds,
		Timeout:     cfg.Source.Timeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("toolcontext: building source: %w", err)
	}

	policy := cache.Policy{
		DefaultTTL: cfg.Cache.DefaultTTL,
		MaxTTL:     cfg.Cache.MaxTTL,
		Overrides:  cfg.Cache.Overrides,
	}
	clock := cache.SystemClock()
	queue := refresh.NewQueue(clock, cfg.Refresh.MaxQueueDepth)

	pool := refresh.NewPool(refresh.PoolConfig{
		Workers:      cfg.Refresh.Workers,
		MaxAttempts:  cfg.Refresh.MaxAttempts,
		InitialDelay: cfg.Refresh.InitialDelay,
		MaxDelay:     cfg.Refresh.MaxDelay,
	}, queue, store, src, policy, clock, obs)

	lookups := lookup.NewService(lookup.Config{
		FetchTimeout:     cfg.Lookup.FetchTimeout,
		MissAttempts:     cfg.Lookup.MissAttempts,
		AuthResetTimeout: cfg.Lookup.AuthResetTimeout,
	}, store, src, policy, clock, queue, obs)

	required, err := cfg.RequiredKeys()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Service{
		store:   store,
		policy:  policy,
		clock:   clock,
		queue:   queue,
		pool:    pool,
		lookups: lookups,
		builder: &budget.Builder{},
		allocator: &budget.Allocator{
			Caps:    cfg.Budget.Caps,
			Default: cfg.Budget.DefaultCap,
		},
		reporter: report.NewReporter(store, clock, lookups),
		required: required,
		log:      obs.Logger().WithComponent("service"),
		stats:    obs.Metrics(),
	}, nil
}

// Start launches the background refresh workers. Lookups work before
// Start, but stale entries will only queue up without being refreshed.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.pool.Start(ctx)
	s.log.Info(ctx, "documentation service started")
}

// Close stops the refresh workers and closes the cache store.
// Idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.started {
		s.pool.Stop()
	}
	return s.store.Close()
}

// RequestDocs resolves every requested key and assembles the results
// into a single context string within agentID's token cap. Upstream
// failures never fail the call: affected sections carry a placeholder.
func (s *Service) RequestDocs(ctx context.Context, agentID string, reqs []DocRequest) (string, error) {
	artifacts := make([]budget.Artifact, 0, len(reqs))
	for _, req := range reqs {
		key := cache.Key{Library: req.Library, Topic: req.Topic}
		result, err := s.lookups.Lookup(ctx, key, req.Priority)
		if err != nil {
			return "", fmt.Errorf("toolcontext: request for %q: %w", key.String(), err)
		}
		artifacts = append(artifacts, budget.Artifact{
			ID:       key.String(),
			Content:  render(result),
			Priority: req.Priority,
		})
	}

	tokenCap := s.allocator.ResolveCap(agentID)
	built := s.builder.Build(artifacts, tokenCap)
	if len(built.Truncated) > 0 || len(built.Dropped) > 0 {
		s.stats.RecordTruncation(ctx, agentID)
		s.log.Debug(ctx, "context assembly hit the budget",
			observe.Field{Key: "agent", Value: agentID},
			observe.Field{Key: "cap", Value: tokenCap},
			observe.Field{Key: "truncated", Value: len(built.Truncated)},
			observe.Field{Key: "dropped", Value: len(built.Dropped)},
		)
	}
	return built.Context, nil
}

// render formats one lookup result as a context section. Stale content
// is labeled so agents know it may be outdated.
func render(r lookup.Result) string {
	header := "# " + r.Key.String() + "\n"
	if r.Confidence == cache.ConfidenceStaleFallback {
		header += "(cached copy past its refresh window; may be outdated)\n"
	}
	return header + r.Content
}

// Coverage reports cache coverage against the configured required
// manifest.
func (s *Service) Coverage(ctx context.Context) (report.Report, error) {
	return s.reporter.Coverage(ctx, s.required)
}

// Handler returns the operational HTTP endpoints: /healthz for
// liveness and /coverage for the validation report.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", report.LivenessHandler())
	mux.HandleFunc("/coverage", report.CoverageHandler(s.reporter, func() []cache.Key {
		return s.required
	}))
	return mux
}

// Invalidate drops the cached entry for library/topic, forcing the
// next lookup to fetch upstream.
func (s *Service) Invalidate(ctx context.Context, library, topic string) error {
	return s.store.Invalidate(ctx, cache.Key{Library: library, Topic: topic})
}
