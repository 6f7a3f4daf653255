package onboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	r "github.com/stretchr/testify/require"

	"github.com/tracelink/tracelink/pkg/telemetry"
)

func TestHandler_Onboard(t *testing.T) {
	queue := &captureQueue{}
	server, _ := mockNewServer(queue)

	req := httptest.NewRequest(http.MethodPost, "/onboard",
		strings.NewReader(`{"customer_id":"CUST-1","type":"enterprise"}`))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	// partial-success runs answer 206, full successes 200
	r.Contains(t, []int{http.StatusOK, http.StatusPartialContent}, rec.Code)

	var result Result
	r.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	r.Equal(t, "CUST-1", result.CustomerID)
	r.Equal(t, "enterprise", result.CustomerType)
	r.Equal(t, "completed", result.Operations["validation"])
	r.Len(t, queue.sent(), 1)
}

func TestHandler_Onboard_ValidationError(t *testing.T) {
	server, _ := mockNewServer(&captureQueue{})

	req := httptest.NewRequest(http.MethodPost, "/onboard", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	r.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	r.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	r.Equal(t, "validation_error", body["status"])
	r.Equal(t, "customer ID is required", body["error"])
}

func TestHandler_Onboard_BogusBody(t *testing.T) {
	server, _ := mockNewServer(&captureQueue{})

	// an unreadable body degrades to an empty payload, then fails validation
	req := httptest.NewRequest(http.MethodPost, "/onboard", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	r.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Smoke(t *testing.T) {
	queue := &captureQueue{}
	server, _ := mockNewServer(queue)

	req := httptest.NewRequest(http.MethodPost, "/telemetry/smoke",
		strings.NewReader(`{"customer_id":"SMOKE-1"}`))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	r.Equal(t, http.StatusOK, rec.Code)

	msgs := queue.sent()
	r.Len(t, msgs, 1)
	r.Contains(t, msgs[0].Attributes, "traceparent")
	r.Equal(t, "SMOKE-1", msgs[0].Attributes["customer.id"])
}

func TestHandler_Health(t *testing.T) {
	server, _ := mockNewServer(&captureQueue{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	r.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	r.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	r.Equal(t, "healthy", body["status"])
}

func TestHandler_Metrics(t *testing.T) {
	server, _ := mockNewServer(&captureQueue{})

	onboard := httptest.NewRequest(http.MethodPost, "/onboard",
		strings.NewReader(`{"customer_id":"CUST-1"}`))
	server.Router().ServeHTTP(httptest.NewRecorder(), onboard)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	r.Equal(t, http.StatusOK, rec.Code)
	r.Contains(t, rec.Body.String(), "onboarding_api_requests_total")
}

func TestHandler_RootSpanFollowsOutcome(t *testing.T) {
	server, collector, provider := mockNewServerProvider(&captureQueue{})

	req := httptest.NewRequest(http.MethodPost, "/onboard", strings.NewReader(`{}`))
	server.Router().ServeHTTP(httptest.NewRecorder(), req)
	r.NoError(t, provider.ForceFlush(context.Background()))

	root := findSpan(t, collector.queued(), "customer_onboarding_workflow")
	code, msg := root.Status()
	r.Equal(t, telemetry.StatusError, code)
	r.Equal(t, "customer ID is required", msg)

	v, found := root.Attribute("error.type")
	r.True(t, found)
	r.Equal(t, "ValidationError", v.AsString())
}

// mockers

func mockNewServer(queue Queue) (*Server, *collectExporter) {
	server, collector, _ := mockNewServerProvider(queue)
	return server, collector
}

func mockNewServerProvider(queue Queue) (*Server, *collectExporter, *telemetry.Provider) {
	collector, provider, workflow := mockNewWorkflow(queue)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	workflow.metrics = metrics
	server := NewServer(provider.Tracer(), workflow, metrics, reg)
	return server, collector, provider
}
