// Package bus is the in-process pub/sub fabric that decouples the chat and
// notification cores from the UI and the cache writer. Delivery is
// non-blocking; slow subscribers lose events rather than stalling publishers.
package bus

import (
	"strings"
	"sync"
	"time"
)

// Topics published by the console. Subscribers filter by prefix, so "chat."
// matches every chat topic.
const (
	TopicConversationsLoaded  = "chat.conversations_loaded"
	TopicConversationSelected = "chat.conversation_selected"
	TopicMessagesUpdated      = "chat.messages_updated"
	TopicSendAck              = "chat.send_ack"
	TopicSendFailed           = "chat.send_failed"
	TopicCounts               = "notify.counts"
)

// Event is a single published occurrence.
type Event struct {
	Topic   string
	At      time.Time
	Payload any
}

// Bus fans events out to prefix-matched subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Topic.
// Subscribers with a full buffer are skipped.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Topic, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe registers a prefix subscription with the given buffer size and
// returns the receive channel plus a cancel function.
func (b *Bus) Subscribe(prefix string, buf int) (<-chan Event, func()) {
	ch := make(chan Event, buf)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
