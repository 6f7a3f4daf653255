package onboard

import (
	"context"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
)

// Message is the unit handed to the queue. Attributes is the only place a
// trace context may cross the process boundary, as a serialized carrier.
type Message struct {
	Body       []byte
	Attributes map[string]string
}

// Queue is the outbound asynchronous hand-off collaborator.
type Queue interface {
	// Send delivers msg and returns the transport's message id.
	Send(ctx context.Context, msg Message) (string, error)
}

// BusQueue runs the hand-off over an in-process event bus, so one process
// can demonstrate the full producer-to-consumer trace stitch.
type BusQueue struct {
	bus   EventBus.Bus
	topic string
}

func NewBusQueue(bus EventBus.Bus, topic string) *BusQueue {
	return &BusQueue{bus: bus, topic: topic}
}

func (q *BusQueue) Send(_ context.Context, msg Message) (string, error) {
	messageID := uuid.NewString()
	q.bus.Publish(q.topic, msg, messageID)
	return messageID, nil
}
