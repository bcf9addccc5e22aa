package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolcontext/cache"
	"github.com/jonwraymond/toolcontext/observe"
	"github.com/jonwraymond/toolcontext/refresh"
	"github.com/jonwraymond/toolcontext/source"
)

// State classifies how a lookup was resolved.
type State string

const (
	// StateMiss means the key was absent and fetched synchronously.
	StateMiss State = "miss"
	// StateHitFresh means a fresh cache entry was served.
	StateHitFresh State = "hit_fresh"
	// StateHitStale means a stale entry was served and a refresh queued.
	StateHitStale State = "hit_stale"
)

// Result is the outcome of one lookup. Content is always usable: on an
// unrecoverable miss it holds a placeholder and Unavailable is set.
type Result struct {
	// Key is the key that was looked up.
	Key cache.Key

	// Content is the documentation text or an unavailability
	// placeholder.
	Content string

	// State is how the lookup was resolved.
	State State

	// Confidence labels the served content; meaningless when
	// Unavailable is set.
	Confidence cache.Confidence

	// Unavailable is set when the key is uncached and could not be
	// fetched. Nothing was cached.
	Unavailable bool
}

// Config configures the lookup service.
type Config struct {
	// FetchTimeout bounds one synchronous miss-path fetch, retries
	// included. Default: 10 seconds.
	FetchTimeout time.Duration

	// MissAttempts bounds fetch attempts on the miss path (including
	// the first). Misses block a live request, so this stays small.
	// Default: 2
	MissAttempts int

	// MissDelay is the backoff delay between miss-path attempts.
	// Default: 200ms
	MissDelay time.Duration

	// AuthResetTimeout is how long fetches stay gated after an
	// authentication failure. Default: 5 minutes.
	AuthResetTimeout time.Duration
}

// Service resolves documentation lookups against the cache, falling
// back to the upstream source on a miss.
//
// Contract:
// - Concurrency: safe for concurrent use; concurrent misses for the
//   same key share a single upstream fetch.
// - Errors: Lookup only returns an error for an invalid key. Upstream
//   failures resolve to an Unavailable result instead.
// - Failed fetches cache nothing; the next lookup retries upstream.
type Service struct {
	config   Config
	store    cache.Store
	src      source.Source
	policy   cache.Policy
	clock    cache.Clock
	queue    *refresh.Queue
	gate     *authGate
	failures *failureRegistry
	sfGroup  singleflight.Group // prevents thundering herd on misses
	log      observe.Logger
	stats    observe.Metrics
	tracer   trace.Tracer
}

// NewService creates a lookup service. A nil queue disables background
// refresh (stale entries are still served); a nil observer disables
// telemetry.
func NewService(config Config, store cache.Store, src source.Source, policy cache.Policy, clock cache.Clock, queue *refresh.Queue, obs observe.Observer) *Service {
	// Apply defaults
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 10 * time.Second
	}
	if config.MissAttempts <= 0 {
		config.MissAttempts = 2
	}
	if config.MissDelay <= 0 {
		config.MissDelay = 200 * time.Millisecond
	}
	if clock == nil {
		clock = cache.SystemClock()
	}
	if obs == nil {
		obs = observe.Noop()
	}

	return &Service{
		config:   config,
		store:    store,
		src:      src,
		policy:   policy,
		clock:    clock,
		queue:    queue,
		gate:     newAuthGate(config.AuthResetTimeout),
		failures: newFailureRegistry(),
		log:      obs.Logger().WithComponent("lookup"),
		stats:    obs.Metrics(),
		tracer:   obs.Tracer(),
	}
}

// Lookup resolves key to documentation content. Priority orders the
// background refresh when a stale entry is served; lower is sooner.
func (s *Service) Lookup(ctx context.Context, key cache.Key, priority int) (Result, error) {
	if err := key.Validate(); err != nil {
		return Result{}, err
	}

	now := s.clock.Now()

	entry, ok, err := s.store.Get(ctx, key)
	if err != nil {
		// A broken store read degrades to a miss rather than failing
		// the lookup.
		s.log.Warn(ctx, "cache read failed, treating as miss",
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		ok = false
	}

	if ok && !cache.IsStale(entry, now) {
		s.stats.RecordLookup(ctx, string(StateHitFresh))
		return Result{
			Key:        key,
			Content:    entry.Content,
			State:      StateHitFresh,
			Confidence: cache.ConfidenceFresh,
		}, nil
	}

	if ok {
		// Serve the stale entry immediately and refresh in the
		// background. Enqueue is idempotent per key, so concurrent
		// stale hits queue at most one refresh.
		if s.queue != nil {
			s.queue.Enqueue(key, priority)
		}
		s.stats.RecordLookup(ctx, string(StateHitStale))
		return Result{
			Key:        key,
			Content:    entry.Content,
			State:      StateHitStale,
			Confidence: cache.ConfidenceStaleFallback,
		}, nil
	}

	s.stats.RecordLookup(ctx, string(StateMiss))
	return s.miss(ctx, key, now), nil
}

// miss fetches an uncached key synchronously and stores the result.
func (s *Service) miss(ctx context.Context, key cache.Key, now time.Time) Result {
	if s.gate.Open(now) {
		// Credentials were recently rejected; a fetch would fail the
		// same way, so skip the network entirely.
		s.log.Debug(ctx, "fetch gated after auth failure",
			observe.Field{Key: "key", Value: key.String()},
		)
		return unavailable(key)
	}

	content, err, _ := s.sfGroup.Do(key.String(), func() (any, error) {
		return s.fetchAndStore(ctx, key)
	})
	if err != nil {
		kind := source.Classify(err)
		s.failures.Record(key, kind, s.clock.Now())
		if errors.Is(err, source.ErrAuth) {
			s.gate.Trip(s.clock.Now())
		}
		s.log.Warn(ctx, "miss fetch failed, serving placeholder",
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "class", Value: kind},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return unavailable(key)
	}

	return Result{
		Key:        key,
		Content:    content.(string),
		State:      StateMiss,
		Confidence: cache.ConfidenceFresh,
	}
}

// fetchAndStore fetches key from upstream with bounded retries and
// writes the result to the cache on success. The whole blocking fetch
// runs under one span.
func (s *Service) fetchAndStore(ctx context.Context, key cache.Key) (_ any, err error) {
	ctx, span := s.tracer.Start(ctx, "docs.fetch",
		trace.WithAttributes(
			attribute.String("docs.library", key.Library),
			attribute.String("docs.topic", key.Topic),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.config.MissDelay

	doc, err := backoff.Retry(ctx, func() (*source.Document, error) {
		start := time.Now()
		doc, err := s.src.Fetch(ctx, key.Library, key.Topic)
		s.stats.RecordFetch(ctx, time.Since(start), source.Classify(err))
		if err != nil && !source.Transient(err) {
			return nil, backoff.Permanent(err)
		}
		return doc, err
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(s.config.MissAttempts)),
	)
	if err != nil {
		return nil, err
	}

	entry := cache.Entry{
		Key:        key,
		Content:    doc.Content,
		FetchedAt:  s.clock.Now(),
		TTL:        s.policy.EffectiveTTL(key.Library),
		Confidence: cache.ConfidenceFresh,
	}
	if err := s.store.Put(ctx, entry); err != nil {
		// The fetch succeeded; serve the content even if the cache
		// write failed.
		s.log.Error(ctx, "fetched but cache write failed",
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}

	s.failures.Clear(key)
	s.gate.Reset()
	return doc.Content, nil
}

// Failures returns the current per-key fetch failure records, for the
// coverage report.
func (s *Service) Failures() []Failure {
	return s.failures.Snapshot()
}

// AuthGated reports whether upstream fetches are currently blocked by
// a recent authentication failure.
func (s *Service) AuthGated() bool {
	return s.gate.Open(s.clock.Now())
}

func unavailable(key cache.Key) Result {
	return Result{
		Key:         key,
		Content:     fmt.Sprintf("[documentation unavailable: %s]", key.String()),
		State:       StateMiss,
		Unavailable: true,
	}
}
