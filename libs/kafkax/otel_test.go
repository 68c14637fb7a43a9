package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestHeaderCarrierSetAppendsAndOverwrites(t *testing.T) {
	c := &headerCarrier{headers: []kafka.Header{{Key: "event_id", Value: []byte("e1")}}}

	c.Set("traceparent", "00-aaa")
	if got := c.Get("traceparent"); got != "00-aaa" {
		t.Fatalf("appended header not visible, got %q", got)
	}

	c.Set("traceparent", "00-bbb")
	if got := c.Get("traceparent"); got != "00-bbb" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	if len(c.headers) != 2 {
		t.Fatalf("expected 2 headers after overwrite, got %d", len(c.headers))
	}
	if c.Get("event_id") != "e1" {
		t.Fatal("pre-existing header lost")
	}
}
