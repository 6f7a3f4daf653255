package onboard

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tracelink/tracelink/pkg/config"
	"github.com/tracelink/tracelink/pkg/propagation"
	"github.com/tracelink/tracelink/pkg/telemetry"
)

// Result summarizes one onboarding run for the API response.
type Result struct {
	Status           string            `json:"status"`
	RequestID        string            `json:"request_id"`
	CustomerID       string            `json:"customer_id"`
	CustomerType     string            `json:"customer_type"`
	ProcessingTimeMs float64           `json:"processing_time_ms"`
	SuccessScore     float64           `json:"success_score"`
	Operations       map[string]string `json:"operations"`
	ExistingCustomer bool              `json:"existing_customer"`
	Timestamp        string            `json:"timestamp"`
}

// Workflow runs the onboarding steps, each inside its own child span of the
// caller's root span.
type Workflow struct {
	tracer   *telemetry.Tracer
	store    *Store
	queue    Queue
	notifier Notifier
	metrics  *Metrics
}

func NewWorkflow(tracer *telemetry.Tracer, store *Store, queue Queue, notifier Notifier, metrics *Metrics) *Workflow {
	return &Workflow{
		tracer:   tracer,
		store:    store,
		queue:    queue,
		notifier: notifier,
		metrics:  metrics,
	}
}

// Run executes the workflow. A *ValidationError return means the request was
// bad, any other error is internal; partial downstream failures degrade the
// success score instead of failing the run.
func (w *Workflow) Run(ctx context.Context, payload map[string]any, requestID string) (*Result, error) {
	started := time.Now()

	customer, err := w.validate(ctx, payload)
	if err != nil {
		return nil, err
	}

	root := telemetry.SpanFromContext(ctx)
	if root != nil {
		root.SetAttributes(
			telemetry.String("customer.id", customer.CustomerID),
			telemetry.String("customer.type", customer.Type),
			telemetry.String("business.operation", "complete_customer_onboarding"),
			telemetry.String("business.request_id", requestID),
		)
	}

	logrus.WithFields(logrus.Fields{
		"request_id":    requestID,
		"customer_id":   customer.CustomerID,
		"customer_type": customer.Type,
	}).Info("customer onboarding workflow initiated")

	enriched := w.score(ctx, customer, requestID)
	_, exists := w.checkExisting(ctx, customer.CustomerID, requestID)
	record, err := w.createRecord(ctx, enriched, exists, requestID)
	if err != nil {
		return nil, err
	}

	asyncOK := w.triggerAsync(ctx, record, requestID)
	queueOK := w.queueForProcessing(ctx, record, requestID)
	notified := false
	if !exists {
		notified = w.sendWelcome(ctx, record, requestID)
	}

	score := successScore(asyncOK, queueOK, notified)
	elapsed := time.Since(started)

	status := "success"
	if score < 0.8 {
		status = "partial_success"
	} else if w.metrics != nil {
		w.metrics.Success.WithLabelValues(customer.Type).Inc()
	}

	if root != nil {
		root.SetAttributes(
			telemetry.Float64("business.processing_duration_ms", float64(elapsed.Milliseconds())),
			telemetry.Float64("business.success_score", score),
			telemetry.Bool("business.queue_success", queueOK),
			telemetry.Bool("business.notification_sent", notified),
			telemetry.Bool("business.existing_customer", exists),
		)
	}

	result := &Result{
		Status:           status,
		RequestID:        requestID,
		CustomerID:       customer.CustomerID,
		CustomerType:     customer.Type,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		SuccessScore:     score,
		Operations: map[string]string{
			"validation":       "completed",
			"record_creation":  "completed",
			"async_processing": okOr(asyncOK, "triggered", "failed"),
			"queue_processing": okOr(queueOK, "queued", "failed"),
			"notification":     notificationState(notified, exists),
		},
		ExistingCustomer: exists,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	logrus.WithFields(logrus.Fields{
		"request_id":    requestID,
		"customer_id":   customer.CustomerID,
		"success_score": score,
		"result_status": status,
	}).Info("customer onboarding workflow completed")

	return result, nil
}

func (w *Workflow) validate(ctx context.Context, payload map[string]any) (Customer, error) {
	_, span := w.tracer.StartSpan(ctx, "validate_customer_request",
		telemetry.WithAttributes(telemetry.String("business.operation", "validate_customer_request")))
	defer span.End()

	customer, err := validateRequest(payload)
	if err != nil {
		span.RecordError(err)
		return Customer{}, err
	}

	span.SetAttributes(
		telemetry.String("customer.type", customer.Type),
		telemetry.String("customer.industry", customer.Industry),
		telemetry.String("customer.region", customer.Region),
	)
	return customer, nil
}

// score stands in for the real validation service.
func (w *Workflow) score(ctx context.Context, customer Customer, requestID string) CustomerRecord {
	_, span := w.tracer.StartSpan(ctx, "perform_customer_validation",
		telemetry.WithAttributes(
			telemetry.String("business.operation", "perform_customer_validation"),
			telemetry.String("business.request_id", requestID)))
	defer span.End()

	rec := CustomerRecord{Customer: customer}
	rec.ValidationScore = 0.7 + rand.Float64()*0.3
	rec.RiskLevel = riskLevels[rand.Intn(len(riskLevels))]
	rec.ValidationID = uuid.NewString()

	span.SetAttributes(
		telemetry.Float64("customer.validation_score", rec.ValidationScore),
		telemetry.String("customer.risk_level", rec.RiskLevel),
	)
	return rec
}

// 75% low risk
var riskLevels = []string{"low", "medium", "low", "low"}

func (w *Workflow) checkExisting(ctx context.Context, customerID, requestID string) (CustomerRecord, bool) {
	ctx, span := w.tracer.StartSpan(ctx, "check_existing_customer",
		telemetry.WithAttributes(
			telemetry.String("business.operation", "check_existing_customer"),
			telemetry.String("business.request_id", requestID),
			telemetry.String("customer.id", customerID)))
	defer span.End()

	existing, exists := w.store.CheckExisting(ctx, customerID)
	span.SetAttribute("customer.exists", exists)
	return existing, exists
}

func (w *Workflow) createRecord(ctx context.Context, rec CustomerRecord, exists bool, requestID string) (CustomerRecord, error) {
	ctx, span := w.tracer.StartSpan(ctx, "create_customer_record",
		telemetry.WithAttributes(
			telemetry.String("business.operation", "create_customer_record"),
			telemetry.String("business.request_id", requestID),
			telemetry.String("customer.id", rec.CustomerID)))
	defer span.End()

	rec.RecordID = uuid.NewString()
	rec.Operation = okOr(exists, "updated", "created")
	rec.ProcessingTimestamp = time.Now().UTC().Format(time.RFC3339)

	if err := w.store.SaveRecord(ctx, rec); err != nil {
		span.RecordError(err)
		return CustomerRecord{}, err
	}

	span.SetAttributes(
		telemetry.String("database.operation", rec.Operation),
		telemetry.String("customer.record_id", rec.RecordID),
	)
	return rec, nil
}

// triggerAsync stands in for the direct function invocation path.
func (w *Workflow) triggerAsync(ctx context.Context, rec CustomerRecord, requestID string) bool {
	_, span := w.tracer.StartSpan(ctx, "trigger_async_processing",
		telemetry.WithKind(telemetry.KindClient),
		telemetry.WithAttributes(
			telemetry.String("business.operation", "trigger_async_processing"),
			telemetry.String("business.request_id", requestID)))
	defer span.End()

	// simulated invocation result
	ok := rand.Float64() < 0.85
	if !ok {
		span.SetStatus(telemetry.StatusError, "async invocation failed")
		logrus.WithField("request_id", requestID).Warn("async processing failed")
	}
	span.SetAttribute("invocation.result", okOr(ok, "success", "failed"))
	return ok
}

// queueForProcessing hands the record to the queue. The producer span's
// context is injected into the message attributes before the send, so the
// traceparent references the producer span, not the enclosing step.
func (w *Workflow) queueForProcessing(ctx context.Context, rec CustomerRecord, requestID string) bool {
	ctx, span := w.tracer.StartSpan(ctx, "queue_for_processing",
		telemetry.WithAttributes(
			telemetry.String("business.operation", "queue_for_processing"),
			telemetry.String("business.request_id", requestID)))
	defer span.End()

	body, err := json.Marshal(map[string]any{
		"customer_id":   rec.CustomerID,
		"request_id":    requestID,
		"event_type":    "customer_processing",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"customer_data": rec,
	})
	if err != nil {
		span.RecordError(err)
		return false
	}

	_, producer := w.tracer.StartSpan(ctx, "queue.send",
		telemetry.WithKind(telemetry.KindProducer),
		telemetry.WithAttributes(
			telemetry.String("messaging.destination.name", config.QueueTopic),
			telemetry.String("messaging.operation", "send"),
			telemetry.String("customer.id", rec.CustomerID),
			telemetry.String("business.request_id", requestID)))
	defer producer.End()

	carrier := propagation.Inject(producer.SpanContext())

	attrs := make(map[string]string, len(carrier)+1)
	for k, v := range carrier {
		attrs[k] = v
	}
	attrs["customer.id"] = rec.CustomerID

	logrus.Infof("producer trace_id=%s traceparent=%s",
		producer.SpanContext().TraceID(), carrier.Get(propagation.KeyTraceparent))

	messageID, err := w.queue.Send(ctx, Message{Body: body, Attributes: attrs})
	if err != nil {
		producer.RecordError(err)
		span.RecordError(err)
		logrus.WithError(err).WithField("request_id", requestID).
			Error("tracelink couldn't queue customer for processing")
		return false
	}

	producer.SetAttribute("messaging.message_id", messageID)
	span.SetAttributes(
		telemetry.String("queue.message_id", messageID),
		telemetry.Bool("trace.propagated", true),
	)

	logrus.WithFields(logrus.Fields{
		"request_id":  requestID,
		"customer_id": rec.CustomerID,
		"message_id":  messageID,
		"traceparent": carrier.Get(propagation.KeyTraceparent),
	}).Info("customer queued for processing")
	return true
}

func (w *Workflow) sendWelcome(ctx context.Context, rec CustomerRecord, requestID string) bool {
	ctx, span := w.tracer.StartSpan(ctx, "send_welcome_notification",
		telemetry.WithAttributes(
			telemetry.String("business.operation", "send_welcome_notification"),
			telemetry.String("business.request_id", requestID)))
	defer span.End()

	if err := w.notifier.Notify(ctx, rec); err != nil {
		span.RecordError(err)
		return false
	}
	span.SetAttribute("notification.sent", true)
	return true
}

// successScore weighs the downstream outcomes into one number.
func successScore(asyncOK, queueOK, notified bool) float64 {
	score := 0.0
	if asyncOK {
		score += 0.4
	}
	if queueOK {
		score += 0.4
	}
	if notified {
		score += 0.2
	}
	return score
}

func okOr(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func notificationState(notified, exists bool) string {
	switch {
	case notified:
		return "sent"
	case exists:
		return "skipped"
	default:
		return "failed"
	}
}
