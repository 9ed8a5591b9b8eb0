package chat

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchgrid/opsdesk/internal/bus"
	"go.uber.org/zap"
)

// Directory is the backend collaborator the store pulls the conversation
// list from.
type Directory interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
}

// ConversationStore owns the conversation directory, grouped by counterparty
// type, and the active selection. Selection carries a generation counter:
// every real selection change bumps it, and any in-flight fetch captures the
// generation at issuance so late responses for an abandoned selection can be
// recognized and dropped.
type ConversationStore struct {
	mu         sync.RWMutex
	dir        Directory
	bus        *bus.Bus
	logger     *zap.Logger
	groups     map[CounterpartyType][]Conversation
	active     ConversationKey
	selected   bool
	generation uint64
}

// NewConversationStore creates an empty store backed by dir.
func NewConversationStore(dir Directory, b *bus.Bus, logger *zap.Logger) *ConversationStore {
	return &ConversationStore{
		dir:    dir,
		bus:    b,
		logger: logger,
		groups: make(map[CounterpartyType][]Conversation),
	}
}

// Load fetches the full conversation list and replaces the grouped directory
// wholesale. On error the prior directory is left untouched and the error is
// returned for the caller to surface; the store never partially merges.
func (s *ConversationStore) Load(ctx context.Context) error {
	convs, err := s.dir.ListConversations(ctx)
	if err != nil {
		s.logger.Warn("conversation list fetch failed", zap.Error(err))
		return err
	}
	s.Replace(convs)
	return nil
}

// Replace installs a full directory snapshot, dropping records with an
// unknown counterparty tag. Used by Load and by the warm-start cache.
func (s *ConversationStore) Replace(convs []Conversation) {
	groups := make(map[CounterpartyType][]Conversation)
	for _, c := range convs {
		if !c.Key.Type.Valid() {
			s.logger.Warn("dropping conversation with unknown counterparty type",
				zap.String("type", string(c.Key.Type)), zap.String("id", c.Key.ID))
			continue
		}
		groups[c.Key.Type] = append(groups[c.Key.Type], c)
	}

	s.mu.Lock()
	s.groups = groups
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Topic:   bus.TopicConversationsLoaded,
		At:      time.Now(),
		Payload: convs,
	})
}

// Group returns the conversations of one counterparty type.
func (s *ConversationStore) Group(t CounterpartyType) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, len(s.groups[t]))
	copy(out, s.groups[t])
	return out
}

// All returns every conversation in display order (customers, vendors,
// drivers).
func (s *ConversationStore) All() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Conversation
	for _, t := range CounterpartyTypes {
		out = append(out, s.groups[t]...)
	}
	return out
}

// Lookup finds a conversation by identity key.
func (s *ConversationStore) Lookup(key ConversationKey) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.groups[key.Type] {
		if c.Key == key {
			return c, true
		}
	}
	return Conversation{}, false
}

// Select moves the active selection to key. Re-selecting the identical key
// is a no-op that neither bumps the generation nor reports a change, so an
// already-loaded log is not cleared or reloaded. A real change bumps the
// generation, invalidating every response issued for the prior selection.
func (s *ConversationStore) Select(key ConversationKey) (gen uint64, changed bool) {
	s.mu.Lock()
	if s.selected && s.active == key {
		gen = s.generation
		s.mu.Unlock()
		return gen, false
	}
	s.active = key
	s.selected = true
	s.generation++
	gen = s.generation
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Topic:   bus.TopicConversationSelected,
		At:      time.Now(),
		Payload: key,
	})
	return gen, true
}

// Active returns the current selection, if any.
func (s *ConversationStore) Active() (ConversationKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.selected
}

// Generation returns the current selection generation. A response is stale
// when the generation captured at request time no longer matches.
func (s *ConversationStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
