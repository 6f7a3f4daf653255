package telemetry

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tracelink/tracelink/pkg/config"
)

// wire format of one exported span batch
type exportPayload struct {
	Resource []attrPayload `json:"resource,omitempty"`
	Spans    []spanPayload `json:"spans"`
}

type spanPayload struct {
	TraceID      string        `json:"trace_id"`
	SpanID       string        `json:"span_id"`
	ParentSpanID string        `json:"parent_span_id,omitempty"`
	TraceState   string        `json:"trace_state,omitempty"`
	Name         string        `json:"name"`
	Kind         string        `json:"kind"`
	StartTime    int64         `json:"start_time_unix_nano"`
	EndTime      int64         `json:"end_time_unix_nano"`
	Attributes   []attrPayload `json:"attributes,omitempty"`
	Status       statusPayload `json:"status"`
	Links        []linkPayload `json:"links,omitempty"`
}

type attrPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type statusPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type linkPayload struct {
	TraceID    string `json:"trace_id"`
	SpanID     string `json:"span_id"`
	TraceState string `json:"trace_state,omitempty"`
}

func marshalSpan(span *Span) spanPayload {
	p := spanPayload{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		TraceState: span.SpanContext().TraceState().String(),
		Name:       span.Name(),
		Kind:       span.Kind().String(),
		StartTime:  span.StartTime().UnixNano(),
		EndTime:    span.EndTime().UnixNano(),
	}
	if span.Parent().IsValid() {
		p.ParentSpanID = span.Parent().SpanID().String()
	}
	for _, attr := range span.Attributes() {
		p.Attributes = append(p.Attributes, attrPayload{Key: attr.Key, Value: attr.Value.Emit()})
	}
	code, msg := span.Status()
	p.Status = statusPayload{Code: code.String(), Message: msg}
	for _, link := range span.Links() {
		p.Links = append(p.Links, linkPayload{
			TraceID:    link.SpanContext.TraceID().String(),
			SpanID:     link.SpanContext.SpanID().String(),
			TraceState: link.SpanContext.TraceState().String(),
		})
	}
	return p
}

// OTLPExporter posts JSON span batches to the telemetry backend.
type OTLPExporter struct {
	client   *resty.Client
	resource []attrPayload
}

func NewOTLPExporter(cfg config.Telemetry) *OTLPExporter {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(config.ExportTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &OTLPExporter{
		client: client,
		resource: []attrPayload{
			{Key: "service.name", Value: cfg.ServiceName},
			{Key: "service.version", Value: cfg.ServiceVersion},
			{Key: "deployment.environment", Value: cfg.Environment},
		},
	}
}

func (e *OTLPExporter) ExportSpans(ctx context.Context, spans []*Span) error {
	payload := exportPayload{Resource: e.resource}
	for _, span := range spans {
		payload.Spans = append(payload.Spans, marshalSpan(span))
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/v1/traces")
	if err != nil {
		return fmt.Errorf("posting span batch: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telemetry backend returned %s", resp.Status())
	}
	return nil
}

func (e *OTLPExporter) Shutdown(context.Context) error {
	return nil
}

// multiExporter fans one batch out to several sinks. A failing sink doesn't
// stop the others, the first error is reported.
type multiExporter []SpanExporter

func (m multiExporter) ExportSpans(ctx context.Context, spans []*Span) error {
	var firstErr error
	for _, exporter := range m {
		if err := exporter.ExportSpans(ctx, spans); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiExporter) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, exporter := range m {
		if err := exporter.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
