package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tracelink/tracelink/pkg/config"
)

// SpanExporter ships batches of ended spans to a backend.
// A failed export must not surface to the code that produced the spans.
type SpanExporter interface {
	ExportSpans(ctx context.Context, spans []*Span) error
	Shutdown(ctx context.Context) error
}

// BatchProcessor buffers ended spans and drains them off the hot path.
// The queue is shared by every call chain in the process; the drain side is
// single-owner, so a background drain and a ForceFlush serialize against
// each other instead of interleaving network sends.
type BatchProcessor struct {
	exporter SpanExporter

	mu    sync.Mutex
	queue []*Span

	// held for the whole of any drain
	drainMu sync.Mutex

	dropped  atomic.Uint64
	exported atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewBatchProcessor(exporter SpanExporter) *BatchProcessor {
	bp := &BatchProcessor{
		exporter: exporter,
		queue:    make([]*Span, 0, config.MaxExportBatch),
		done:     make(chan struct{}),
	}
	bp.wg.Add(1)
	go bp.run()
	return bp
}

// OnEnd appends an ended span to the pending queue. When the queue is full
// the span is dropped and counted, the business path is never blocked.
func (bp *BatchProcessor) OnEnd(span *Span) {
	bp.mu.Lock()
	if len(bp.queue) >= config.MaxQueuedSpans {
		bp.mu.Unlock()
		if bp.dropped.Add(1) == 1 {
			logrus.Warn("tracelink span queue full, dropping spans")
		}
		return
	}
	bp.queue = append(bp.queue, span)
	bp.mu.Unlock()
}

// QueueLen reports the number of pending spans.
func (bp *BatchProcessor) QueueLen() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.queue)
}

// Dropped reports how many spans were discarded because the queue was full.
func (bp *BatchProcessor) Dropped() uint64 {
	return bp.dropped.Load()
}

// Exported reports how many spans were handed to the exporter.
func (bp *BatchProcessor) Exported() uint64 {
	return bp.exported.Load()
}

func (bp *BatchProcessor) run() {
	defer bp.wg.Done()
	ticker := time.NewTicker(config.ExportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			bp.drain(context.Background())
		case <-bp.done:
			return
		}
	}
}

// drain exports everything queued at entry, one batch at a time.
func (bp *BatchProcessor) drain(ctx context.Context) error {
	bp.drainMu.Lock()
	defer bp.drainMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		bp.mu.Lock()
		if len(bp.queue) == 0 {
			bp.mu.Unlock()
			return nil
		}
		n := len(bp.queue)
		if n > config.MaxExportBatch {
			n = config.MaxExportBatch
		}
		batch := make([]*Span, n)
		copy(batch, bp.queue)
		bp.queue = bp.queue[:copy(bp.queue, bp.queue[n:])]
		bp.mu.Unlock()

		if config.Debug {
			for _, span := range batch {
				config.Log4RawSpans.WithFields(logrus.Fields{
					"trace_id": span.SpanContext().TraceID().String(),
					"span_id":  span.SpanContext().SpanID().String(),
					"kind":     span.Kind().String(),
				}).Debug(span.Name())
			}
		}

		expCtx, cancel := context.WithTimeout(ctx, config.ExportTimeout)
		err := bp.exporter.ExportSpans(expCtx, batch)
		cancel()
		if err != nil {
			// at-most-once: log and drop, never retry into the hot path
			logrus.WithError(err).Warnf("tracelink couldn't export %d spans, batch dropped", len(batch))
			continue
		}
		bp.exported.Add(uint64(len(batch)))
	}
}

// ForceFlush synchronously drains the queue, bounded by ctx. On timeout it
// logs a flush-incomplete warning and returns; the caller proceeds normally.
func (bp *BatchProcessor) ForceFlush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.FlushTimeout)
		defer cancel()
	}
	if err := bp.drain(ctx); err != nil {
		logrus.WithError(err).Warnf("tracelink flush incomplete, %d spans still pending", bp.QueueLen())
		return err
	}
	return nil
}

// Shutdown stops the background drain, flushes once more and shuts the
// exporter down. Later calls are no-ops.
func (bp *BatchProcessor) Shutdown(ctx context.Context) error {
	var err error
	bp.stopOnce.Do(func() {
		close(bp.done)
		bp.wg.Wait()
		err = bp.ForceFlush(ctx)
		if shutdownErr := bp.exporter.Shutdown(ctx); err == nil {
			err = shutdownErr
		}
	})
	return err
}
