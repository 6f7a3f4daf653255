package consume

import (
	"context"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/tracelink/tracelink/pkg/config"
	"github.com/tracelink/tracelink/pkg/propagation"
	"github.com/tracelink/tracelink/pkg/telemetry"
)

// BatchResult reports one consumer invocation.
type BatchResult struct {
	BatchSize  int `json:"batch_size"`
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
}

// ProcessFunc is the per-message business work, an external collaborator.
type ProcessFunc func(ctx context.Context, rec Record) error

// Consumer is the batch-triggered side of the pipeline. For every record it
// reopens the producer's trace from the carried context; records from
// different producers stay in their own traces, and one aggregate batch span
// ties the invocation together through links instead of parentage.
type Consumer struct {
	provider *telemetry.Provider
	tracer   *telemetry.Tracer
	dedup    *lru.Cache[string, struct{}]
	process  ProcessFunc
}

func NewConsumer(provider *telemetry.Provider, process ProcessFunc) *Consumer {
	dedup, _ := lru.New[string, struct{}](config.MaxDedupMessages)
	return &Consumer{
		provider: provider,
		tracer:   provider.Tracer(),
		dedup:    dedup,
		process:  process,
	}
}

// Handle processes one batch. It always force-flushes the span pipeline
// before returning: the hosting instance may be frozen right after, and
// spans still buffered at that point are lost.
func (c *Consumer) Handle(ctx context.Context, records []Record) BatchResult {
	defer c.flush(ctx)

	invCtx, invocation := c.tracer.StartSpan(ctx, "consumer.invoke",
		telemetry.WithKind(telemetry.KindServer),
		telemetry.WithAttributes(telemetry.String("faas.trigger", "pubsub")))
	defer invocation.End()

	if len(records) == 0 {
		_, direct := c.tracer.StartSpan(invCtx, "consumer.direct_invoke",
			telemetry.WithKind(telemetry.KindServer))
		direct.End()
		return BatchResult{}
	}

	result := BatchResult{BatchSize: len(records)}
	links := make([]telemetry.Link, 0, len(records))

	for _, rec := range records {
		span := c.handleRecord(invCtx, rec, &result)
		// the batch span links every per-message trace, including the
		// fresh roots minted for records that carried no context
		links = append(links, telemetry.Link{SpanContext: span.SpanContext()})
	}

	// aggregate batch span: no single parent, or it would falsely merge
	// unrelated traces; batch-level numbers hang off the links instead
	_, batch := c.tracer.StartSpan(invCtx, "queue.batch",
		telemetry.WithNoParent(),
		telemetry.WithKind(telemetry.KindConsumer),
		telemetry.WithLinks(links...),
		telemetry.WithAttributes(
			telemetry.String("messaging.operation", "batch_process"),
			telemetry.Int("messaging.batch_size", result.BatchSize),
			telemetry.Int("messaging.processed_count", result.Processed),
			telemetry.String("faas.trigger", "pubsub")))
	batch.End()

	logrus.WithFields(logrus.Fields{
		"batch_size": result.BatchSize,
		"processed":  result.Processed,
		"links":      len(links),
	}).Info("processed message batch")
	return result
}

// handleRecord opens the per-message CONSUMER span and runs the work inside
// it. The extracted remote context, not the invocation span, is the parent;
// that is what stitches this span onto the producer's trace. A record with
// no usable context becomes its own new root, never dropped, never merged.
func (c *Consumer) handleRecord(ctx context.Context, rec Record, result *BatchResult) *telemetry.Span {
	carrier := propagation.FromAttributes(rec.Attributes)
	parent, hasParent := propagation.Extract(carrier)

	opts := []telemetry.SpanOption{
		telemetry.WithKind(telemetry.KindConsumer),
		telemetry.WithAttributes(
			telemetry.String("messaging.operation", "process"),
			telemetry.String("messaging.message_id", rec.MessageID),
			telemetry.String("messaging.destination", sourceOrUnknown(rec.Source)),
			telemetry.String("faas.trigger", "pubsub")),
	}
	if hasParent {
		opts = append(opts, telemetry.WithRemoteParent(parent))
	} else {
		opts = append(opts, telemetry.WithNoParent())
	}

	recCtx, span := c.tracer.StartSpan(ctx, "queue.process", opts...)
	defer span.End()

	logrus.WithFields(logrus.Fields{
		"trace_id":   span.SpanContext().TraceID().String(),
		"message_id": rec.MessageID,
	}).Info("processing queue message")

	c.decorateFromBody(span, rec.Body)

	if rec.MessageID != "" {
		if _, seen := c.dedup.Get(rec.MessageID); seen {
			span.SetAttribute("messaging.duplicate", true)
			result.Duplicates++
			return span
		}
		c.dedup.Add(rec.MessageID, struct{}{})
	}

	if c.process != nil {
		if err := c.process(recCtx, rec); err != nil {
			// business failure is recorded, then passed through untouched
			span.RecordError(err)
			logrus.WithError(err).WithField("message_id", rec.MessageID).
				Warn("message processing failed")
			return span
		}
	}

	span.SetStatus(telemetry.StatusOK, "")
	result.Processed++
	return span
}

// decorateFromBody pulls business attributes out of the message body.
// A body that doesn't decode marks the span but never fails the record.
func (c *Consumer) decorateFromBody(span *telemetry.Span, body []byte) {
	var parsed struct {
		CustomerID string `json:"customer_id"`
		RequestID  string `json:"request_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.SetAttributes(
			telemetry.Bool("processing.decode_error", true),
			telemetry.String("error.message", err.Error()))
		logrus.WithError(err).Warn("couldn't parse message body")
		return
	}
	if parsed.CustomerID != "" {
		span.SetAttribute("customer.id", parsed.CustomerID)
	}
	if parsed.RequestID != "" {
		span.SetAttribute("business.request_id", parsed.RequestID)
	}
	span.SetAttribute("workflow.stage", "queue_processing")
}

func (c *Consumer) flush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(ctx, config.FlushTimeout)
	defer cancel()
	if err := c.provider.ForceFlush(flushCtx); err != nil {
		logrus.WithError(err).Warn("tracelink couldn't flush spans before return")
	}
}

func sourceOrUnknown(source string) string {
	if source == "" {
		return config.NameUnknown
	}
	return source
}
