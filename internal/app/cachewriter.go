package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/dispatchgrid/opsdesk/internal/bus"
	"github.com/dispatchgrid/opsdesk/internal/chat"
	"github.com/dispatchgrid/opsdesk/internal/notify"
	"github.com/dispatchgrid/opsdesk/internal/store"
)

// CacheWriter persists directory and badge snapshots as they flow over the
// bus, so the next console start can paint last-known state before the first
// network round-trip. Message text is deliberately never written.
type CacheWriter struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewCacheWriter creates a cache writer over db.
func NewCacheWriter(db *store.DB, b *bus.Bus, logger *zap.Logger) *CacheWriter {
	return &CacheWriter{db: db, bus: b, logger: logger}
}

// Start subscribes to snapshot events and persists them until Stop.
func (w *CacheWriter) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	ch, unsub := w.bus.Subscribe("", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				w.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the writer loop.
func (w *CacheWriter) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *CacheWriter) handleEvent(evt bus.Event) {
	switch evt.Topic {
	case bus.TopicConversationsLoaded:
		convs, ok := evt.Payload.([]chat.Conversation)
		if !ok {
			return
		}
		if err := w.db.ReplaceConversations(convs); err != nil {
			w.logger.Error("failed to cache conversations", zap.Error(err), zap.Int("count", len(convs)))
		}
	case bus.TopicCounts:
		counts, ok := evt.Payload.(notify.Counts)
		if !ok {
			return
		}
		if err := w.db.UpsertCounts(counts); err != nil {
			w.logger.Error("failed to cache counts", zap.Error(err))
		}
	}
}
