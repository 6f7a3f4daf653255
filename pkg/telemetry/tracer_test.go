package telemetry

import (
	"context"
	"sync"
	"testing"

	r "github.com/stretchr/testify/require"
	tr "go.opentelemetry.io/otel/trace"
)

func TestTracer_RootSpan(t *testing.T) {
	_, tracer := mockNewProvider()

	_, span := tracer.StartSpan(context.Background(), "root")
	defer span.End()

	r.True(t, span.SpanContext().IsValid())
	r.False(t, span.Parent().IsValid())
	r.True(t, span.SpanContext().IsSampled())
}

func TestTracer_ChildInheritsTraceID(t *testing.T) {
	_, tracer := mockNewProvider()

	ctx, parent := tracer.StartSpan(context.Background(), "parent")
	_, child := tracer.StartSpan(ctx, "child")

	r.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	r.NotEqual(t, parent.SpanContext().SpanID(), child.SpanContext().SpanID())
	r.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
}

func TestTracer_RemoteParentWins(t *testing.T) {
	_, tracer := mockNewProvider()

	// local stack has a current span, the extracted remote context wins
	ctx, local := tracer.StartSpan(context.Background(), "local")
	defer local.End()

	remote := mockRemoteContext(t)
	_, span := tracer.StartSpan(ctx, "consumer", WithRemoteParent(remote))
	defer span.End()

	r.Equal(t, remote.TraceID(), span.SpanContext().TraceID())
	r.NotEqual(t, local.SpanContext().TraceID(), span.SpanContext().TraceID())
	r.Equal(t, remote.SpanID(), span.Parent().SpanID())
	r.NotEqual(t, remote.SpanID(), span.SpanContext().SpanID())
}

func TestTracer_NoParentForcesNewRoot(t *testing.T) {
	_, tracer := mockNewProvider()

	ctx, local := tracer.StartSpan(context.Background(), "local")
	defer local.End()

	_, span := tracer.StartSpan(ctx, "batch", WithNoParent())
	defer span.End()

	r.False(t, span.Parent().IsValid())
	r.NotEqual(t, local.SpanContext().TraceID(), span.SpanContext().TraceID())
}

func TestTracer_FlagsFollowParent(t *testing.T) {
	_, tracer := mockNewProvider()

	remote := tr.NewSpanContext(tr.SpanContextConfig{
		TraceID: mockRemoteContext(t).TraceID(),
		SpanID:  mockRemoteContext(t).SpanID(),
		// not sampled
		TraceFlags: 0x00,
		Remote:     true,
	})

	_, span := tracer.StartSpan(context.Background(), "consumer", WithRemoteParent(remote))
	defer span.End()

	r.False(t, span.SpanContext().IsSampled())
}

func TestTracer_ConcurrentChainsStayIsolated(t *testing.T) {
	_, tracer := mockNewProvider()

	const chains = 16
	traceIDs := make([]tr.TraceID, chains)
	var wg sync.WaitGroup
	for i := 0; i < chains; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, root := tracer.StartSpan(context.Background(), "root")
			_, child := tracer.StartSpan(ctx, "child")
			child.End()
			root.End()
			r.Equal(t, root.SpanContext().TraceID(), child.SpanContext().TraceID())
			traceIDs[i] = root.SpanContext().TraceID()
		}(i)
	}
	wg.Wait()

	seen := make(map[tr.TraceID]bool, chains)
	for _, id := range traceIDs {
		r.False(t, seen[id], "two call chains shared a trace id")
		seen[id] = true
	}
}

func mockRemoteContext(t *testing.T) tr.SpanContext {
	t.Helper()
	traceID, err := tr.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	r.NoError(t, err)
	spanID, err := tr.SpanIDFromHex("b7ad6b7169203331")
	r.NoError(t, err)
	return tr.NewSpanContext(tr.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: tr.FlagsSampled,
		Remote:     true,
	})
}

func TestTracer_SpanFromContext(t *testing.T) {
	_, tracer := mockNewProvider()

	r.Nil(t, SpanFromContext(context.Background()))
	r.False(t, SpanContextFromContext(context.Background()).IsValid())

	ctx, span := tracer.StartSpan(context.Background(), "op")
	r.Same(t, span, SpanFromContext(ctx))
	r.Equal(t, span.SpanContext(), SpanContextFromContext(ctx))
}

// mockers

// collectExporter buffers exported spans in memory.
type collectExporter struct {
	mu    sync.Mutex
	spans []*Span
	fail  bool
}

func (c *collectExporter) ExportSpans(_ context.Context, spans []*Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return context.DeadlineExceeded
	}
	c.spans = append(c.spans, spans...)
	return nil
}

func (c *collectExporter) Shutdown(context.Context) error { return nil }

func (c *collectExporter) queued() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	spans := make([]*Span, len(c.spans))
	copy(spans, c.spans)
	return spans
}

// mockNewProvider builds a provider over an in-memory exporter.
func mockNewProvider() (*collectExporter, *Tracer) {
	collector := &collectExporter{}
	provider := NewProvider(collector)
	return collector, provider.Tracer()
}
