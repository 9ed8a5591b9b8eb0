package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dispatchgrid/opsdesk/internal/bus"
	"go.uber.org/zap"
)

var base = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend is a controllable Transcript. Gates let tests hold a call open
// to exercise the overlap paths.
type fakeBackend struct {
	mu        sync.Mutex
	histories map[ConversationKey][]Message
	listErr   error
	sendErr   error
	listCalls int
	sendCalls int

	listGate    map[ConversationKey]chan struct{} // ListMessages blocks until closed
	listStarted chan ConversationKey
	sendGate    chan struct{} // SendMessage blocks until closed
	sendStarted chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		histories: make(map[ConversationKey][]Message),
		listGate:  make(map[ConversationKey]chan struct{}),
	}
}

func (f *fakeBackend) ListMessages(_ context.Context, key ConversationKey) ([]Message, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate[key]
	started := f.listStarted
	f.mu.Unlock()

	if started != nil {
		started <- key
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Message(nil), f.histories[key]...), nil
}

func (f *fakeBackend) SendMessage(_ context.Context, key ConversationKey, text string) error {
	f.mu.Lock()
	f.sendCalls++
	started := f.sendStarted
	gate := f.sendGate
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	n := len(f.histories[key])
	f.histories[key] = append(f.histories[key], Message{
		ID:        fmt.Sprintf("srv-%d", n+1),
		Text:      text,
		Sender:    SenderAdmin,
		Timestamp: base.Add(time.Duration(n+1) * time.Minute),
		Delivery:  DeliveryConfirmed,
	})
	return nil
}

func serverMsg(id, text string, minute int) Message {
	return Message{
		ID:        id,
		Text:      text,
		Sender:    SenderCounterparty,
		Timestamp: base.Add(time.Duration(minute) * time.Minute),
		Delivery:  DeliveryConfirmed,
	}
}

func newTestChannel(api *fakeBackend) (*Channel, *ConversationStore) {
	b := bus.New()
	store := NewConversationStore(nil, b, zap.NewNop())
	c := NewChannel(store, api, b, zap.NewNop())
	c.refetchDelay = 0 // reconcile immediately under test
	return c, store
}

var (
	keyA = ConversationKey{Type: Customer, ID: "c1"}
	keyB = ConversationKey{Type: Vendor, ID: "v1"}
)

func TestOpenLoadsHistoryAscending(t *testing.T) {
	api := newFakeBackend()
	// Server returns newest-first; the channel must render ascending.
	api.histories[keyA] = []Message{
		serverMsg("m2", "second", 2),
		serverMsg("m1", "first", 1),
	}
	c, _ := newTestChannel(api)

	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("log = %v, want ascending [m1 m2]", msgs)
	}
}

func TestOptimisticRollback(t *testing.T) {
	api := newFakeBackend()
	api.histories[keyA] = []Message{serverMsg("m1", "hello", 1)}
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	api.sendErr = errors.New("502 bad gateway")
	if err := c.Send(context.Background(), "did you get my order?"); err == nil {
		t.Fatal("Send() expected error")
	}

	// The failed optimistic entry must be fully removed, not left visible.
	for _, m := range c.Messages() {
		if m.Text == "did you get my order?" {
			t.Fatalf("ghost message survived rollback: %+v", m)
		}
	}
	if got := len(c.Messages()); got != 1 {
		t.Errorf("log length = %d, want 1", got)
	}
}

func TestRollbackAllowsRetry(t *testing.T) {
	api := newFakeBackend()
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	api.sendErr = errors.New("timeout")
	if err := c.Send(context.Background(), "hi"); err == nil {
		t.Fatal("expected failure")
	}
	api.sendErr = nil
	if err := c.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("retry after rollback failed: %v", err)
	}
	if api.sendCalls != 2 {
		t.Errorf("send calls = %d, want 2", api.sendCalls)
	}
}

func TestSingleFlightSend(t *testing.T) {
	api := newFakeBackend()
	api.sendGate = make(chan struct{})
	api.sendStarted = make(chan struct{}, 1)
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "first") }()
	<-api.sendStarted

	// Second submission while the first is in flight: no-op, no network call.
	if err := c.Send(context.Background(), "second"); !errors.Is(err, ErrSendInFlight) {
		t.Errorf("second Send() error = %v, want ErrSendInFlight", err)
	}

	close(api.sendGate)
	if err := <-done; err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	if api.sendCalls != 1 {
		t.Errorf("network send calls = %d, want exactly 1", api.sendCalls)
	}
}

func TestStaleSelectionGuard(t *testing.T) {
	api := newFakeBackend()
	api.histories[keyA] = []Message{serverMsg("a1", "from A", 1)}
	api.listGate[keyA] = make(chan struct{})
	api.listStarted = make(chan ConversationKey, 4)
	c, _ := newTestChannel(api)

	// A's history load is held open while the user switches to B.
	done := make(chan error, 1)
	go func() { done <- c.Open(context.Background(), keyA) }()
	if key := <-api.listStarted; key != keyA {
		t.Fatalf("first load = %v, want %v", key, keyA)
	}

	if err := c.Open(context.Background(), keyB); err != nil {
		t.Fatal(err)
	}

	// A's response arrives too late and must be discarded.
	close(api.listGate[keyA])
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	for _, m := range c.Messages() {
		if m.ID == "a1" {
			t.Fatal("stale response for A overwrote B's log")
		}
	}
	if got := len(c.Messages()); got != 0 {
		t.Errorf("log = %d messages, want 0 (B has no history)", got)
	}
}

func TestReopenActiveConversationKeepsLog(t *testing.T) {
	api := newFakeBackend()
	api.histories[keyA] = []Message{serverMsg("m1", "hello", 1)}
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}
	if api.listCalls != 1 {
		t.Errorf("history fetches = %d, want 1 (idempotent re-selection)", api.listCalls)
	}
	if got := len(c.Messages()); got != 1 {
		t.Errorf("log cleared by re-selection: %d messages, want 1", got)
	}
}

func TestSendOrderingAndReconciliation(t *testing.T) {
	api := newFakeBackend()
	api.histories[keyA] = []Message{
		serverMsg("m1", "one", -2),
		serverMsg("m2", "two", -1),
	}
	api.sendGate = make(chan struct{})
	api.sendStarted = make(chan struct{}, 1)
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "hi") }()
	<-api.sendStarted

	// Optimistic entry is already visible, appended after confirmed history.
	msgs := c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("log = %d messages mid-send, want 3", len(msgs))
	}
	last := msgs[2]
	if last.Text != "hi" || last.Delivery != DeliveryPending || last.Sender != SenderAdmin {
		t.Errorf("optimistic tail = %+v", last)
	}
	if last.ID == "" || last.ID[:6] != "local-" {
		t.Errorf("optimistic id = %q, want local temp id", last.ID)
	}

	close(api.sendGate)
	if err := <-done; err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// After the reconciling refetch the server copy replaces the optimistic
	// entry: same order, canonical id, nothing interleaved.
	msgs = c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("log = %d messages after reconcile, want 3", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("confirmed history reordered: %v", msgs)
	}
	if msgs[2].ID != "srv-3" || msgs[2].Text != "hi" || msgs[2].Delivery != DeliveryConfirmed {
		t.Errorf("reconciled tail = %+v, want server copy of \"hi\"", msgs[2])
	}
	for _, m := range msgs {
		if m.Delivery == DeliveryPending {
			t.Errorf("pending entry survived reconciliation: %+v", m)
		}
	}
}

func TestEmptyInputRejected(t *testing.T) {
	api := newFakeBackend()
	api.histories[keyA] = []Message{serverMsg("m1", "hello", 1)}
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"", "   ", "\n\t "} {
		if err := c.Send(context.Background(), text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyMessage", text, err)
		}
	}
	if api.sendCalls != 0 {
		t.Errorf("send calls = %d, want 0", api.sendCalls)
	}
	if got := len(c.Messages()); got != 1 {
		t.Errorf("log changed by rejected sends: %d messages, want 1", got)
	}
}

func TestSendWithoutSelection(t *testing.T) {
	api := newFakeBackend()
	c, _ := newTestChannel(api)

	if err := c.Send(context.Background(), "hello?"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("Send() error = %v, want ErrNoConversation", err)
	}
	if api.sendCalls != 0 {
		t.Errorf("send calls = %d, want 0", api.sendCalls)
	}
}

func TestReloadPreservesPendingTail(t *testing.T) {
	api := newFakeBackend()
	api.histories[keyA] = []Message{serverMsg("m1", "hello", 1)}
	api.sendGate = make(chan struct{})
	api.sendStarted = make(chan struct{}, 1)
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "hi") }()
	<-api.sendStarted

	// A periodic reload racing the in-flight send must not drop the
	// optimistic entry.
	if err := c.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Delivery != DeliveryPending {
		t.Errorf("log after overlapping reload = %v, want pending tail intact", msgs)
	}

	close(api.sendGate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestSendFailureAfterSwitchReleasesSlot(t *testing.T) {
	api := newFakeBackend()
	api.sendGate = make(chan struct{})
	api.sendStarted = make(chan struct{}, 1)
	api.sendErr = errors.New("rejected")
	c, _ := newTestChannel(api)
	if err := c.Open(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "for A") }()
	<-api.sendStarted

	// Switching conversations does not cancel the send; its resolution must
	// not touch B's log.
	if err := c.Open(context.Background(), keyB); err != nil {
		t.Fatal(err)
	}
	close(api.sendGate)
	if err := <-done; err == nil {
		t.Fatal("expected send failure")
	}

	if got := len(c.Messages()); got != 0 {
		t.Errorf("B's log = %d messages, want 0", got)
	}
	// The single-flight slot is free again.
	api.sendErr = nil
	api.sendGate = nil
	if err := c.Send(context.Background(), "for B"); err != nil {
		t.Fatalf("follow-up send failed: %v", err)
	}
}

func TestDeliveryTransitions(t *testing.T) {
	tests := []struct {
		from, to DeliveryState
		want     bool
	}{
		{DeliveryPending, DeliveryConfirmed, true},
		{DeliveryPending, DeliveryFailed, true},
		{DeliveryConfirmed, DeliveryFailed, false},
		{DeliveryFailed, DeliveryPending, false},
		{DeliveryConfirmed, DeliveryPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
