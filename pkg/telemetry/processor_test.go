package telemetry

import (
	"context"
	"testing"
	"time"

	r "github.com/stretchr/testify/require"
	"github.com/tracelink/tracelink/pkg/config"
)

func TestBatchProcessor_FlushEmptiesQueue(t *testing.T) {
	collector, tracer := mockNewProvider()

	for i := 0; i < 10; i++ {
		_, span := tracer.StartSpan(context.Background(), "op")
		span.End()
	}
	processor := tracer.provider.processor
	r.Equal(t, 10, processor.QueueLen())

	r.NoError(t, processor.ForceFlush(context.Background()))

	r.Equal(t, 0, processor.QueueLen())
	r.Len(t, collector.queued(), 10)
	r.Equal(t, uint64(10), processor.Exported())
}

func TestBatchProcessor_ExportFailureIsAbsorbed(t *testing.T) {
	collector, tracer := mockNewProvider()
	collector.fail = true

	_, span := tracer.StartSpan(context.Background(), "op")
	span.End()

	processor := tracer.provider.processor
	// the batch is logged and dropped, the caller never sees the failure
	r.NoError(t, processor.ForceFlush(context.Background()))
	r.Equal(t, 0, processor.QueueLen())
	r.Empty(t, collector.queued())
	r.Equal(t, uint64(0), processor.Exported())
}

func TestBatchProcessor_DropWhenFull(t *testing.T) {
	origMax := config.MaxQueuedSpans
	config.MaxQueuedSpans = 4
	defer func() { config.MaxQueuedSpans = origMax }()

	_, tracer := mockNewProvider()
	for i := 0; i < 10; i++ {
		_, span := tracer.StartSpan(context.Background(), "op")
		span.End()
	}

	processor := tracer.provider.processor
	r.Equal(t, 4, processor.QueueLen())
	r.Equal(t, uint64(6), processor.Dropped())
}

func TestBatchProcessor_FlushTimeout(t *testing.T) {
	_, tracer := mockNewProvider()
	_, span := tracer.StartSpan(context.Background(), "op")
	span.End()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	// an expired deadline reports flush-incomplete instead of blocking
	err := tracer.provider.processor.ForceFlush(ctx)
	r.Error(t, err)
}

func TestProvider_ShutdownTwice(t *testing.T) {
	collector, tracer := mockNewProvider()
	_, span := tracer.StartSpan(context.Background(), "op")
	span.End()

	provider := tracer.provider
	r.NoError(t, provider.Shutdown(context.Background()))
	r.NoError(t, provider.Shutdown(context.Background()))
	r.Len(t, collector.queued(), 1)
}

func TestProvider_NilExporterDropsSpans(t *testing.T) {
	provider := NewProvider(nil)
	_, span := provider.Tracer().StartSpan(context.Background(), "op")
	span.End()

	r.NoError(t, provider.ForceFlush(context.Background()))
	r.NoError(t, provider.Shutdown(context.Background()))
}
