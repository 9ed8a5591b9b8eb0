package store

import (
	"fmt"
	"time"

	"github.com/dispatchgrid/opsdesk/internal/chat"
)

// ReplaceConversations swaps the cached directory snapshot wholesale,
// mirroring how the in-memory store treats a fresh listing.
func (db *DB) ReplaceConversations(convs []chat.Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, c := range convs {
		if _, err := tx.Exec(`
			INSERT INTO conversations (counterparty_type, counterparty_id, display_name, display_handle, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			string(c.Key.Type), c.Key.ID, c.DisplayName, c.DisplayHandle, now); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
	}
	return tx.Commit()
}

// ListConversations returns the cached directory snapshot.
func (db *DB) ListConversations() ([]chat.Conversation, error) {
	rows, err := db.Query(`
		SELECT counterparty_type, counterparty_id, display_name, display_handle
		FROM conversations
		ORDER BY counterparty_type, display_name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []chat.Conversation
	for rows.Next() {
		var typ string
		var c chat.Conversation
		if err := rows.Scan(&typ, &c.Key.ID, &c.DisplayName, &c.DisplayHandle); err != nil {
			return nil, err
		}
		c.Key.Type = chat.CounterpartyType(typ)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
