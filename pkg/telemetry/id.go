package telemetry

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	tr "go.opentelemetry.io/otel/trace"
)

// idSource hands out random trace and span ids. Seeded once from the OS,
// then driven by a locked PRNG so the hot path never blocks on entropy.
type idSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newIDSource() *idSource {
	var seed [8]byte
	_, _ = crand.Read(seed[:])
	return &idSource{
		rnd: rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:])))),
	}
}

func (s *idSource) newTraceID() tr.TraceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id tr.TraceID
	for !id.IsValid() {
		_, _ = s.rnd.Read(id[:])
	}
	return id
}

func (s *idSource) newSpanID() tr.SpanID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id tr.SpanID
	for !id.IsValid() {
		_, _ = s.rnd.Read(id[:])
	}
	return id
}
