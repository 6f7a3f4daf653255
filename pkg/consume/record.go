package consume

import (
	"encoding/json"
	"fmt"
)

// Record is one opaque queue delivery: an id, a body and the string
// attribute map that may carry a serialized trace context.
type Record struct {
	MessageID  string
	Body       []byte
	Attributes map[string]string
	// origin queue or topic, when the transport reports one
	Source string
}

// event mirrors the queue trigger payload shape: a Records list whose
// attribute values sit under stringValue or StringValue depending on the
// transport's casing.
type event struct {
	Records []eventRecord `json:"Records"`
}

type eventRecord struct {
	MessageID         string                    `json:"messageId"`
	Body              string                    `json:"body"`
	EventSource       string                    `json:"eventSourceARN"`
	MessageAttributes map[string]eventAttribute `json:"messageAttributes"`
}

type eventAttribute struct {
	StringValue  string `json:"stringValue"`
	StringValue2 string `json:"StringValue"`
}

func (a eventAttribute) value() string {
	if a.StringValue != "" {
		return a.StringValue
	}
	return a.StringValue2
}

// ParseEvent decodes a queue trigger event into records.
func ParseEvent(raw []byte) ([]Record, error) {
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decoding queue event: %w", err)
	}

	records := make([]Record, 0, len(ev.Records))
	for _, r := range ev.Records {
		attrs := make(map[string]string, len(r.MessageAttributes))
		for k, v := range r.MessageAttributes {
			attrs[k] = v.value()
		}
		records = append(records, Record{
			MessageID:  r.MessageID,
			Body:       []byte(r.Body),
			Attributes: attrs,
			Source:     r.EventSource,
		})
	}
	return records, nil
}
