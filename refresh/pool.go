package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolcontext/cache"
	"github.com/jonwraymond/toolcontext/observe"
	"github.com/jonwraymond/toolcontext/source"
)

// PoolConfig configures the refresh worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent refresh workers.
	// Default: 3
	Workers int

	// MaxAttempts bounds fetch attempts per task (including the first).
	// Default: 5
	MaxAttempts int

	// InitialDelay is the backoff delay after the first failed attempt.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay between attempts.
	// Default: 60s
	MaxDelay time.Duration
}

// Pool drains the refresh queue through the upstream source and writes
// successful results back to the cache with a re-stamped fetch time.
//
// Failures never stop a worker: transient errors are retried with
// bounded exponential backoff, and a task whose attempts are exhausted
// (or that hit a fatal error) is dropped, leaving the stale entry in
// place as last-known-good.
type Pool struct {
	config PoolConfig
	queue  *Queue
	store  cache.Store
	src    source.Source
	policy cache.Policy
	clock  cache.Clock
	log    observe.Logger
	stats  observe.Metrics

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool creates a refresh worker pool. A nil observer disables telemetry.
func NewPool(config PoolConfig, queue *Queue, store cache.Store, src source.Source, policy cache.Policy, clock cache.Clock, obs observe.Observer) *Pool {
	// Apply defaults
	if config.Workers <= 0 {
		config.Workers = 3
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 60 * time.Second
	}
	if clock == nil {
		clock = cache.SystemClock()
	}
	if obs == nil {
		obs = observe.Noop()
	}

	return &Pool{
		config: config,
		queue:  queue,
		store:  store,
		src:    src,
		policy: policy,
		clock:  clock,
		log:    obs.Logger().WithComponent("refresh"),
		stats:  obs.Metrics(),
	}
}

// Start launches the workers. They run until Stop is called or ctx is
// cancelled. Start is not re-entrant.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < p.config.Workers; i++ {
		p.group.Go(func() error {
			p.worker(ctx)
			return nil
		})
	}
}

// Stop cancels the workers and waits for them to exit. In-flight
// fetches are abandoned; the stale entries they were refreshing remain
// valid.
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	_ = p.group.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			return // context cancelled
		}
		p.process(ctx, task)
		p.queue.Done(task.Key)
		p.stats.RecordQueueDepth(ctx, p.queue.Len())
	}
}

// process fetches one task with bounded backoff and applies the result.
func (p *Pool) process(ctx context.Context, task Task) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.config.InitialDelay
	expo.MaxInterval = p.config.MaxDelay

	doc, err := backoff.Retry(ctx, func() (*source.Document, error) {
		doc, err := p.src.Fetch(ctx, task.Key.Library, task.Key.Topic)
		if err != nil && !source.Transient(err) {
			// Not-found and auth failures will not heal with retries.
			return nil, backoff.Permanent(err)
		}
		return doc, err
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(p.config.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			p.log.Debug(ctx, "refresh attempt failed, backing off",
				observe.Field{Key: "task", Value: task.ID},
				observe.Field{Key: "key", Value: task.Key.String()},
				observe.Field{Key: "delay", Value: delay.String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.stats.RecordRefresh(ctx, "dropped")
			return
		}
		// Exhausted or fatal: drop the task, keep the stale entry.
		p.log.Warn(ctx, "refresh abandoned, keeping stale entry",
			observe.Field{Key: "task", Value: task.ID},
			observe.Field{Key: "key", Value: task.Key.String()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		p.stats.RecordRefresh(ctx, "failed")
		return
	}

	entry := cache.Entry{
		Key:        task.Key,
		Content:    doc.Content,
		FetchedAt:  p.clock.Now(),
		TTL:        p.policy.EffectiveTTL(task.Key.Library),
		Confidence: cache.ConfidenceFresh,
	}
	if err := p.store.Put(ctx, entry); err != nil {
		p.log.Error(ctx, "refresh fetched but cache write failed",
			observe.Field{Key: "task", Value: task.ID},
			observe.Field{Key: "key", Value: task.Key.String()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		p.stats.RecordRefresh(ctx, "failed")
		return
	}

	p.log.Info(ctx, "entry refreshed",
		observe.Field{Key: "task", Value: task.ID},
		observe.Field{Key: "key", Value: task.Key.String()},
	)
	p.stats.RecordRefresh(ctx, "ok")
}
