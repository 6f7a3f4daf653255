package onboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tracelink/tracelink/pkg/telemetry"
)

// Server is the HTTP face of the onboarding producer. Its only tracing
// obligation is a root span per request whose status follows the outcome.
type Server struct {
	router   *mux.Router
	tracer   *telemetry.Tracer
	workflow *Workflow
	metrics  *Metrics
}

func NewServer(tracer *telemetry.Tracer, workflow *Workflow, metrics *Metrics, reg *prometheus.Registry) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		tracer:   tracer,
		workflow: workflow,
		metrics:  metrics,
	}

	s.router.HandleFunc("/onboard", s.handleOnboard).Methods(http.MethodPost)
	s.router.HandleFunc("/telemetry/smoke", s.handleSmoke).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if reg != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	if s.metrics != nil {
		s.metrics.Requests.WithLabelValues("/onboard").Inc()
	}

	ctx, span := s.tracer.StartSpan(r.Context(), "customer_onboarding_workflow",
		telemetry.WithKind(telemetry.KindServer),
		telemetry.WithAttributes(
			telemetry.String("http.method", r.Method),
			telemetry.String("http.route", "/onboard"),
			telemetry.String("business.request_id", requestID)))
	defer span.End()

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		payload = map[string]any{}
	}

	result, err := s.workflow.Run(ctx, payload, requestID)

	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		span.SetStatus(telemetry.StatusError, vErr.Reason)
		span.SetAttributes(
			telemetry.String("error.type", "ValidationError"),
			telemetry.String("error.message", vErr.Reason))
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      vErr.Reason,
		}).Warn("customer onboarding validation failed")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":     "validation_error",
			"request_id": requestID,
			"error":      vErr.Reason,
		})
	case err != nil:
		span.SetStatus(telemetry.StatusError, err.Error())
		logrus.WithError(err).WithField("request_id", requestID).
			Error("customer onboarding workflow failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":     "internal_error",
			"request_id": requestID,
			"error":      "internal server error",
		})
	default:
		code := http.StatusOK
		if result.Status != "success" {
			code = http.StatusPartialContent
		}
		span.SetStatus(telemetry.StatusOK, "")
		span.SetAttribute("http.status_code", code)
		writeJSON(w, code, result)
	}
}

// handleSmoke pushes one minimal message through the queue path, for
// verifying the producer-to-consumer trace stitch end to end.
func (s *Server) handleSmoke(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		payload = map[string]any{}
	}
	customerID, _ := payload["customer_id"].(string)
	if customerID == "" {
		customerID = "SMOKE-" + requestID[:8]
	}

	ctx, span := s.tracer.StartSpan(r.Context(), "smoke_root",
		telemetry.WithKind(telemetry.KindServer),
		telemetry.WithAttributes(
			telemetry.String("http.route", "/telemetry/smoke"),
			telemetry.String("http.method", r.Method),
			telemetry.String("customer.id", customerID),
			telemetry.String("business.request_id", requestID)))
	defer span.End()

	rec := CustomerRecord{}
	rec.CustomerID = customerID
	ok := s.workflow.queueForProcessing(ctx, rec, requestID)

	code := http.StatusOK
	if !ok {
		code = http.StatusInternalServerError
		span.SetStatus(telemetry.StatusError, "queue send failed")
	} else {
		span.SetStatus(telemetry.StatusOK, "")
	}
	writeJSON(w, code, map[string]any{
		"status":      okOr(ok, "queued", "failed"),
		"customer_id": customerID,
		"request_id":  requestID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "onboarding-api",
		"version":   "2.0.0",
		"timestamp": time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("tracelink couldn't write response body")
	}
}
