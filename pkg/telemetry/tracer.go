package telemetry

import (
	"context"
	"time"

	tr "go.opentelemetry.io/otel/trace"
)

type spanContextKey struct{}

// ContextWithSpan pushes span as the current span of the call chain.
// The context chain is the active-span stack: each StartSpan returns a new
// context, each End in a defer pops it, and concurrent chains never share
// a stack because they never share a context.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext returns the current span of the call chain, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanContextKey{}).(*Span)
	return span
}

// SpanContextFromContext returns the current span's context, invalid if none.
func SpanContextFromContext(ctx context.Context) tr.SpanContext {
	if span := SpanFromContext(ctx); span != nil {
		return span.SpanContext()
	}
	return tr.SpanContext{}
}

type spanConfig struct {
	kind       Kind
	attributes []Attribute
	links      []Link
	remote     tr.SpanContext
	hasRemote  bool
	noParent   bool
	startTime  time.Time
}

// SpanOption configures a span at start time.
type SpanOption func(*spanConfig)

func WithKind(kind Kind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

func WithAttributes(attrs ...Attribute) SpanOption {
	return func(c *spanConfig) { c.attributes = append(c.attributes, attrs...) }
}

func WithLinks(links ...Link) SpanOption {
	return func(c *spanConfig) { c.links = append(c.links, links...) }
}

// WithRemoteParent parents the span on an extracted context regardless of the
// local stack. This is what stitches a consumer span onto a producer's trace
// across the asynchronous gap.
func WithRemoteParent(sc tr.SpanContext) SpanOption {
	return func(c *spanConfig) {
		c.remote = sc
		c.hasRemote = true
	}
}

// WithNoParent forces a fresh root even when the context carries a span.
// Used for the aggregate batch span, which relates to its records by links.
func WithNoParent() SpanOption {
	return func(c *spanConfig) { c.noParent = true }
}

// WithStartTime overrides the start timestamp, mainly for tests.
func WithStartTime(t time.Time) SpanOption {
	return func(c *spanConfig) { c.startTime = t }
}

// Tracer creates spans and routes ended spans to the export pipeline.
// Safe for concurrent use, nothing in it blocks.
type Tracer struct {
	provider *Provider
	ids      *idSource
}

// StartSpan opens a span and pushes it onto the call chain's stack.
// Parent resolution: an explicit remote parent wins over the context's
// current span; an empty stack mints a fresh root trace.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	cfg := spanConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var parent tr.SpanContext
	switch {
	case cfg.noParent:
		// stays invalid
	case cfg.hasRemote:
		parent = cfg.remote
	default:
		parent = SpanContextFromContext(ctx)
	}

	// trace id is preserved across the causal chain, span id is always fresh
	traceID := t.ids.newTraceID()
	flags := tr.FlagsSampled
	state := tr.TraceState{}
	if parent.IsValid() {
		traceID = parent.TraceID()
		flags = parent.TraceFlags()
		state = parent.TraceState()
	}

	start := cfg.startTime
	if start.IsZero() {
		start = time.Now()
	}

	span := &Span{
		name: name,
		kind: cfg.kind,
		sc: tr.NewSpanContext(tr.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     t.ids.newSpanID(),
			TraceFlags: flags,
			TraceState: state,
		}),
		parent:     parent,
		links:      cfg.links,
		startTime:  start,
		attributes: cfg.attributes,
		tracer:     t,
	}

	return ContextWithSpan(ctx, span), span
}

func (t *Tracer) onEnd(span *Span) {
	if t.provider != nil && t.provider.processor != nil {
		t.provider.processor.OnEnd(span)
	}
}
