package telemetry

import (
	"sync"
	"time"

	tr "go.opentelemetry.io/otel/trace"
)

// Kind classifies a span's position in a request topology.
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "SERVER"
	case KindClient:
		return "CLIENT"
	case KindProducer:
		return "PRODUCER"
	case KindConsumer:
		return "CONSUMER"
	default:
		return "INTERNAL"
	}
}

// StatusCode is the outcome recorded on an ended span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// Link references another span's context without claiming parentage.
// A batch consumer links every per-message trace instead of adopting one.
type Link struct {
	SpanContext tr.SpanContext
	Attributes  []Attribute
}

// Span is one timed unit of causally-tracked work. It is single-writer while
// open and immutable once ended; End hands ownership to the export pipeline.
type Span struct {
	mu sync.Mutex

	name   string
	kind   Kind
	sc     tr.SpanContext
	parent tr.SpanContext
	links  []Link

	startTime time.Time
	endTime   time.Time

	attributes []Attribute
	statusCode StatusCode
	statusMsg  string

	ended  bool
	tracer *Tracer
}

func (s *Span) Name() string              { return s.name }
func (s *Span) Kind() Kind                { return s.kind }
func (s *Span) SpanContext() tr.SpanContext { return s.sc }
func (s *Span) Parent() tr.SpanContext    { return s.parent }
func (s *Span) StartTime() time.Time      { return s.startTime }

func (s *Span) Links() []Link {
	links := make([]Link, len(s.links))
	copy(links, s.links)
	return links
}

func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// SetAttribute records one attribute. No-op once the span has ended.
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attributes = append(s.attributes, Attribute{Key: key, Value: ValueOf(value)})
}

// SetAttributes records attributes in order. No-op once the span has ended.
func (s *Span) SetAttributes(attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attributes = append(s.attributes, attrs...)
}

// Attributes returns a copy of the recorded attributes.
func (s *Span) Attributes() []Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make([]Attribute, len(s.attributes))
	copy(attrs, s.attributes)
	return attrs
}

// Attribute looks an attribute up by key, last write wins.
func (s *Span) Attribute(key string) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.attributes) - 1; i >= 0; i-- {
		if s.attributes[i].Key == key {
			return s.attributes[i].Value, true
		}
	}
	return Value{}, false
}

// SetStatus sets the span outcome. No-op once the span has ended.
func (s *Span) SetStatus(code StatusCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.statusCode = code
	s.statusMsg = message
}

// RecordError marks the span failed with the error's message.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.statusCode = StatusError
	s.statusMsg = err.Error()
	s.attributes = append(s.attributes, Bool("error", true))
}

func (s *Span) Status() (StatusCode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCode, s.statusMsg
}

// End seals the span. Only the first call captures the end time and queues
// the span for export, later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.endTime = time.Now()
	s.mu.Unlock()

	if s.tracer != nil {
		s.tracer.onEnd(s)
	}
}

// Duration reports the elapsed time of an ended span, zero while open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		return 0
	}
	return s.endTime.Sub(s.startTime)
}
