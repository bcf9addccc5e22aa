package lookup

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/toolcontext/cache"
	"github.com/jonwraymond/toolcontext/observe"
	"github.com/jonwraymond/toolcontext/source"
)

// spanObserver is a noop observer with a recording tracer swapped in.
type spanObserver struct {
	observe.Observer
	tracer trace.Tracer
}

func (o spanObserver) Tracer() trace.Tracer { return o.tracer }

func newSpanRecorder() (*tracetest.SpanRecorder, observe.Observer) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, spanObserver{Observer: observe.Noop(), tracer: tp.Tracer("test")}
}

func TestLookup_MissFetchRunsUnderSpan(t *testing.T) {
	recorder, obs := newSpanRecorder()
	store := cache.NewMemoryStore()
	src := newScriptedSource()
	svc := NewService(fastConfig(), store, src, cache.DefaultPolicy(), newStepClock(), nil, obs)
	ctx := context.Background()

	src.script("react/hooks", fetchResult{content: "hooks docs"})

	if _, err := svc.Lookup(ctx, cache.Key{Library: "react", Topic: "hooks"}, 1); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("miss produced %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "docs.fetch" {
		t.Errorf("span name = %q, want %q", span.Name(), "docs.fetch")
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", span.Status().Code)
	}
	var library string
	for _, attr := range span.Attributes() {
		if attr.Key == attribute.Key("docs.library") {
			library = attr.Value.AsString()
		}
	}
	if library != "react" {
		t.Errorf("docs.library attribute = %q, want %q", library, "react")
	}

	// A fresh hit stays on the cache path and opens no span.
	if _, err := svc.Lookup(ctx, cache.Key{Library: "react", Topic: "hooks"}, 1); err != nil {
		t.Fatalf("second Lookup failed: %v", err)
	}
	if got := len(recorder.Ended()); got != 1 {
		t.Errorf("fresh hit added spans: got %d total, want 1", got)
	}
}

func TestLookup_FailedMissFetchRecordsSpanError(t *testing.T) {
	recorder, obs := newSpanRecorder()
	store := cache.NewMemoryStore()
	src := newScriptedSource()
	svc := NewService(fastConfig(), store, src, cache.DefaultPolicy(), newStepClock(), nil, obs)

	src.script("gone", fetchResult{err: fmt.Errorf("%w: removed", source.ErrNotFound)})

	if _, err := svc.Lookup(context.Background(), cache.Key{Library: "gone"}, 1); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("failed miss produced %d spans, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("failed fetch span should record the error event")
	}
}
