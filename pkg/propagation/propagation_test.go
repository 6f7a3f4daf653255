package propagation

import (
	"testing"

	r "github.com/stretchr/testify/require"
	tr "go.opentelemetry.io/otel/trace"
)

func TestPropagation_RoundTrip(t *testing.T) {
	sc := mockSpanContext(traceIDHex1, spanIDHex1, 0x01)

	carrier := Inject(sc)
	got, ok := Extract(carrier)
	r.True(t, ok)

	r.Equal(t, sc.TraceID(), got.TraceID())
	r.Equal(t, sc.SpanID(), got.SpanID())
	r.Equal(t, sc.TraceFlags(), got.TraceFlags())
	r.True(t, got.IsRemote())
}

func TestPropagation_GoldenTraceparent(t *testing.T) {
	// the exact header of the W3C example context
	sc := mockSpanContext("0af7651916cd43dd8448eb211c80319c", "b7ad6b7169203331", 0x01)

	carrier := Inject(sc)
	r.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", carrier[KeyTraceparent])

	got, ok := Extract(carrier)
	r.True(t, ok)
	r.Equal(t, "0af7651916cd43dd8448eb211c80319c", got.TraceID().String())
	r.Equal(t, "b7ad6b7169203331", got.SpanID().String())
	r.Equal(t, tr.TraceFlags(0x01), got.TraceFlags())
}

func TestPropagation_Extract_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		carrier Carrier
	}{
		{"empty carrier", Carrier{}},
		{"missing traceparent", Carrier{"baggage": "k=v"}},
		{"too few segments", Carrier{KeyTraceparent: "00-" + traceIDHex1 + "-" + spanIDHex1}},
		{"too many segments", Carrier{KeyTraceparent: "00-" + traceIDHex1 + "-" + spanIDHex1 + "-01-extra"}},
		{"short trace id", Carrier{KeyTraceparent: "00-0af765-" + spanIDHex1 + "-01"}},
		{"short span id", Carrier{KeyTraceparent: "00-" + traceIDHex1 + "-b7ad-01"}},
		{"zero trace id", Carrier{KeyTraceparent: "00-00000000000000000000000000000000-" + spanIDHex1 + "-01"}},
		{"zero span id", Carrier{KeyTraceparent: "00-" + traceIDHex1 + "-0000000000000000-01"}},
		{"non-hex trace id", Carrier{KeyTraceparent: "00-zzf7651916cd43dd8448eb211c80319c-" + spanIDHex1 + "-01"}},
		{"forbidden version", Carrier{KeyTraceparent: "ff-" + traceIDHex1 + "-" + spanIDHex1 + "-01"}},
		{"wide flags", Carrier{KeyTraceparent: "00-" + traceIDHex1 + "-" + spanIDHex1 + "-0101"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.carrier)
			r.False(t, ok)
			r.False(t, got.IsValid())
		})
	}
}

func TestPropagation_Extract_CaseInsensitive(t *testing.T) {
	header := "00-" + traceIDHex1 + "-" + spanIDHex1 + "-01"

	lower, ok := Extract(Carrier{"traceparent": header})
	r.True(t, ok)
	upper, ok := Extract(Carrier{"TRACEPARENT": header})
	r.True(t, ok)

	r.Equal(t, lower.TraceID(), upper.TraceID())
	r.Equal(t, lower.SpanID(), upper.SpanID())
}

func TestPropagation_TracestateOpaque(t *testing.T) {
	sc := mockSpanContext(traceIDHex1, spanIDHex1, 0x01)
	state, err := tr.ParseTraceState("vendor=opaque,other=x:y")
	r.NoError(t, err)
	sc = sc.WithTraceState(state)

	carrier := Inject(sc)
	r.Equal(t, "vendor=opaque,other=x:y", carrier[KeyTracestate])

	got, ok := Extract(carrier)
	r.True(t, ok)
	r.Equal(t, "vendor=opaque,other=x:y", got.TraceState().String())
}

func TestPropagation_Inject_InvalidContext(t *testing.T) {
	carrier := Inject(tr.SpanContext{})
	r.Empty(t, carrier)
}

func TestCarrier_FromAttributes(t *testing.T) {
	carrier := FromAttributes(map[string]string{
		"TraceParent": " 00-" + traceIDHex1 + "-" + spanIDHex1 + "-01 ",
		"customer.id": "CUST-1",
	})
	r.Equal(t, "00-"+traceIDHex1+"-"+spanIDHex1+"-01", carrier.Get(KeyTraceparent))
	r.Equal(t, "CUST-1", carrier.Get("Customer.Id"))
}

// mockers

const (
	traceIDHex1 = "0102030405060708090a0b0c0d0e0f10"
	spanIDHex1  = "0102030405060708"
)

func mockSpanContext(traceHex, spanHex string, flags byte) tr.SpanContext {
	traceID, _ := tr.TraceIDFromHex(traceHex)
	spanID, _ := tr.SpanIDFromHex(spanHex)
	return tr.NewSpanContext(tr.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: tr.TraceFlags(flags),
	})
}
