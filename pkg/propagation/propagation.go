package propagation

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	tr "go.opentelemetry.io/otel/trace"
)

// W3C trace context keys, always emitted lower-case.
const (
	KeyTraceparent = "traceparent"
	KeyTracestate  = "tracestate"
)

const supportedVersion = "00"

// Inject serializes sc into a fresh Carrier. An invalid context yields an
// empty carrier so the send path never transmits a zero traceparent.
func Inject(sc tr.SpanContext) Carrier {
	carrier := make(Carrier, 2)
	if !sc.IsValid() {
		return carrier
	}

	carrier.Set(KeyTraceparent, fmt.Sprintf("%s-%s-%s-%02x",
		supportedVersion,
		sc.TraceID(),
		sc.SpanID(),
		byte(sc.TraceFlags())))

	if ts := sc.TraceState().String(); ts != "" {
		carrier.Set(KeyTracestate, ts)
	}
	return carrier
}

// Extract parses the traceparent entry of carrier into a remote SpanContext.
// It never fails: a missing or malformed entry reports ok=false and the
// caller proceeds by minting a fresh root trace.
func Extract(carrier Carrier) (tr.SpanContext, bool) {
	header := strings.TrimSpace(carrier.Get(KeyTraceparent))
	if header == "" {
		return tr.SpanContext{}, false
	}

	sc, err := parseTraceparent(header)
	if err != nil {
		logrus.WithError(err).Debugf("tracelink dropped malformed traceparent %q", header)
		return tr.SpanContext{}, false
	}

	// tracestate is opaque, a bad one doesn't invalidate the parent
	if raw := carrier.Get(KeyTracestate); raw != "" {
		if ts, err := tr.ParseTraceState(raw); err == nil {
			sc = sc.WithTraceState(ts)
		} else {
			logrus.WithError(err).Debug("tracelink dropped malformed tracestate")
		}
	}
	return sc, true
}

// parseTraceparent decodes "00-<32 hex>-<16 hex>-<2 hex>".
// Wrong segment count, wrong hex length and all-zero ids are malformed.
func parseTraceparent(header string) (tr.SpanContext, error) {
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return tr.SpanContext{}, fmt.Errorf("traceparent has %d segments, want 4", len(parts))
	}

	version := parts[0]
	if len(version) != 2 {
		return tr.SpanContext{}, fmt.Errorf("traceparent version %q isn't one byte", version)
	}
	if _, err := hex.DecodeString(version); err != nil {
		return tr.SpanContext{}, fmt.Errorf("traceparent version %q isn't hex", version)
	}
	if version == "ff" {
		return tr.SpanContext{}, fmt.Errorf("traceparent version ff is forbidden")
	}

	// rejects wrong length, non-hex and all-zero ids
	traceID, err := tr.TraceIDFromHex(parts[1])
	if err != nil {
		return tr.SpanContext{}, fmt.Errorf("bad trace id %q: %w", parts[1], err)
	}
	spanID, err := tr.SpanIDFromHex(parts[2])
	if err != nil {
		return tr.SpanContext{}, fmt.Errorf("bad span id %q: %w", parts[2], err)
	}

	if len(parts[3]) != 2 {
		return tr.SpanContext{}, fmt.Errorf("trace flags %q aren't one byte", parts[3])
	}
	flags, err := hex.DecodeString(parts[3])
	if err != nil {
		return tr.SpanContext{}, fmt.Errorf("trace flags %q aren't hex", parts[3])
	}

	return tr.NewSpanContext(tr.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: tr.TraceFlags(flags[0]),
		Remote:     true,
	}), nil
}
