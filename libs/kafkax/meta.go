package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the message metadata every producer in this repo stamps
// on Kafka messages: a unique event id for inbox dedup and the
// versioned event type.
type EventMeta struct {
	EventID   string
	EventType string
}

// ExtractEventMeta reads the standard headers, falling back to the
// message key and topic for producers that predate them.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := headerValue(msg.Headers, "event_id")
	eventType := headerValue(msg.Headers, "event_type")
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma-separated broker list from config.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
