package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("chat.", 10)
	defer cancel()

	b.Publish(Event{Topic: TopicSendAck, Payload: "m1"})

	select {
	case evt := <-ch:
		if evt.Topic != TopicSendAck {
			t.Errorf("got topic %q, want %q", evt.Topic, TopicSendAck)
		}
		if evt.At.IsZero() {
			t.Error("At not stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("notify.", 10)
	defer cancel()

	b.Publish(Event{Topic: TopicSendFailed})
	b.Publish(Event{Topic: TopicCounts})

	select {
	case evt := <-ch:
		if evt.Topic != TopicCounts {
			t.Errorf("got topic %q, want %q", evt.Topic, TopicCounts)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The chat event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancel(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("chat.", 10)
	cancel()

	b.Publish(Event{Topic: TopicMessagesUpdated})

	select {
	case evt := <-ch:
		t.Errorf("received event after cancel: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("chat.", 1)
	defer cancel()

	b.Publish(Event{Topic: TopicSendAck, Payload: 1})
	// Buffer full; this one is dropped rather than blocking the publisher.
	b.Publish(Event{Topic: TopicSendAck, Payload: 2})

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("got payload %v, want 1", evt.Payload)
	}
}
