package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dispatchgrid/opsdesk/internal/bus"
	"go.uber.org/zap"
)

// Transcript is the backend collaborator for message history and sends. A 2xx
// on SendMessage means accepted for delivery, not delivered.
type Transcript interface {
	ListMessages(ctx context.Context, key ConversationKey) ([]Message, error)
	SendMessage(ctx context.Context, key ConversationKey, text string) error
}

var (
	// ErrEmptyMessage rejects a send whose text trims to nothing.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrSendInFlight rejects a send while another is still pending.
	ErrSendInFlight = errors.New("a send is already in flight")
	// ErrNoConversation rejects a send with no active selection.
	ErrNoConversation = errors.New("no conversation selected")
)

// defaultRefetchDelay is how long after an accepted send the channel waits
// before refetching history to pick up the server-assigned id and timestamp.
const defaultRefetchDelay = 500 * time.Millisecond

// Channel owns the visible message log for the active conversation: history
// retrieval, optimistic send with rollback, and post-send reconciliation.
// At most one send is in flight at a time; history loads and send-triggered
// refetches may overlap freely because every response is applied only if the
// selection generation it was issued under is still current.
type Channel struct {
	store        *ConversationStore
	api          Transcript
	bus          *bus.Bus
	logger       *zap.Logger
	clock        Clock
	refetchDelay time.Duration

	mu         sync.Mutex
	log        []Message
	sending    bool
	nextTempID int64
}

// NewChannel creates a channel bound to the store's active selection.
func NewChannel(store *ConversationStore, api Transcript, b *bus.Bus, logger *zap.Logger) *Channel {
	return &Channel{
		store:        store,
		api:          api,
		bus:          b,
		logger:       logger,
		clock:        systemClock{},
		refetchDelay: defaultRefetchDelay,
	}
}

// Open selects key and, if the selection actually changed, clears the visible
// log synchronously and fetches the new conversation's history. Re-opening
// the already active conversation is a no-op: the loaded log stays put.
func (c *Channel) Open(ctx context.Context, key ConversationKey) error {
	gen, changed := c.store.Select(key)
	if !changed {
		return nil
	}

	// Stale messages from the previous conversation must never be visible
	// while the new history is loading.
	c.mu.Lock()
	c.log = nil
	c.mu.Unlock()
	c.publishLog(key)

	return c.loadHistory(ctx, key, gen)
}

// Reload refetches history for the current selection. Used by the periodic
// UI refresh to pick up counterparty replies.
func (c *Channel) Reload(ctx context.Context) error {
	key, ok := c.store.Active()
	if !ok {
		return nil
	}
	return c.loadHistory(ctx, key, c.store.Generation())
}

// Send validates, appends an optimistic entry, and posts text to the active
// conversation. The optimistic entry is visible before any network traffic.
// On rejection (empty text, send in flight, nothing selected) no network call
// is made and the log is untouched. On backend failure the entry is rolled
// back; on success it is confirmed and a delayed refetch reconciles the log
// against the server copy.
func (c *Channel) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	key, ok := c.store.Active()
	if !ok {
		return ErrNoConversation
	}
	gen := c.store.Generation()

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	c.nextTempID++
	tempID := fmt.Sprintf("local-%d", c.nextTempID)
	c.log = append(c.log, Message{
		ID:        tempID,
		Text:      text,
		Sender:    SenderAdmin,
		Timestamp: c.clock.Now(),
		Delivery:  DeliveryPending,
	})
	c.mu.Unlock()
	c.publishLog(key)

	if err := c.api.SendMessage(ctx, key, text); err != nil {
		c.resolveOptimistic(key, tempID, DeliveryFailed)
		c.logger.Warn("send failed",
			zap.String("conversation", key.String()),
			zap.String("temp_id", tempID),
			zap.Error(err))
		c.bus.Publish(bus.Event{Topic: bus.TopicSendFailed, Payload: err.Error()})
		return err
	}

	c.resolveOptimistic(key, tempID, DeliveryConfirmed)
	c.bus.Publish(bus.Event{Topic: bus.TopicSendAck, Payload: tempID})

	// The server owns the canonical id and timestamp; refetch shortly to
	// swap the optimistic entry for the server copy.
	if c.refetchDelay > 0 {
		select {
		case <-c.clock.After(c.refetchDelay):
		case <-ctx.Done():
			return nil
		}
	}
	if err := c.loadHistory(ctx, key, gen); err != nil {
		// The send itself was accepted; a failed refetch only delays
		// reconciliation until the next reload.
		return nil
	}
	return nil
}

// Messages returns a snapshot of the visible log.
func (c *Channel) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.log))
	copy(out, c.log)
	return out
}

// loadHistory fetches key's message log and applies it only if gen is still
// the store's current selection generation at resolution time. Pending
// optimistic entries are carried over at the tail so an overlapping plain
// reload cannot make an in-flight send vanish.
func (c *Channel) loadHistory(ctx context.Context, key ConversationKey, gen uint64) error {
	msgs, err := c.api.ListMessages(ctx, key)
	if err != nil {
		c.logger.Warn("history fetch failed",
			zap.String("conversation", key.String()), zap.Error(err))
		return err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	c.mu.Lock()
	if c.store.Generation() != gen {
		c.mu.Unlock()
		c.logger.Debug("dropping stale history response",
			zap.String("conversation", key.String()), zap.Uint64("generation", gen))
		return nil
	}
	var pending []Message
	for _, m := range c.log {
		if m.Delivery == DeliveryPending {
			pending = append(pending, m)
		}
	}
	c.log = append(msgs, pending...)
	c.mu.Unlock()
	c.publishLog(key)
	return nil
}

// resolveOptimistic applies the terminal transition to a pending entry:
// confirmed entries stay visible until the refetch replaces them, failed
// entries are removed outright so no ghost message survives. Either way the
// single-flight send slot is released. If the entry is gone (the user
// switched conversations mid-send) only the slot is released.
func (c *Channel) resolveOptimistic(key ConversationKey, tempID string, next DeliveryState) {
	c.mu.Lock()
	c.sending = false
	idx := -1
	for i, m := range c.log {
		if m.ID == tempID {
			idx = i
			break
		}
	}
	if idx < 0 || !c.log[idx].Delivery.CanTransition(next) {
		c.mu.Unlock()
		return
	}
	if next == DeliveryFailed {
		c.log = append(c.log[:idx], c.log[idx+1:]...)
	} else {
		c.log[idx].Delivery = next
	}
	c.mu.Unlock()
	c.publishLog(key)
}

func (c *Channel) publishLog(key ConversationKey) {
	c.bus.Publish(bus.Event{Topic: bus.TopicMessagesUpdated, Payload: key})
}
