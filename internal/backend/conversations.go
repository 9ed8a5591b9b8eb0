package backend

import (
	"context"
	"net/url"
	"time"

	"github.com/dispatchgrid/opsdesk/internal/chat"
)

type conversationRecord struct {
	Type  string `json:"type"`
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type messageRecord struct {
	ID        flexID `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

type sendRequest struct {
	Message       string `json:"message"`
	RecipientType string `json:"recipient_type"`
	RecipientID   string `json:"recipient_id"`
}

// ListConversations fetches the full conversation directory. An empty array
// is a valid result. Records with an unknown counterparty tag are passed
// through; the store drops them.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var records []conversationRecord
	if err := c.get(ctx, "/admin/conversations", nil, &records); err != nil {
		return nil, err
	}

	convs := make([]chat.Conversation, 0, len(records))
	for _, r := range records {
		handle := r.Email
		if handle == "" {
			handle = string(r.ID)
		}
		convs = append(convs, chat.Conversation{
			Key:           chat.ConversationKey{Type: chat.CounterpartyType(r.Type), ID: string(r.ID)},
			DisplayName:   r.Name,
			DisplayHandle: handle,
		})
	}
	return convs, nil
}

// ListMessages fetches the ordered message log for one counterparty. Server
// copies arrive confirmed; only locally originated entries are ever pending.
func (c *Client) ListMessages(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	query := url.Values{
		"recipient_type": {string(key.Type)},
		"recipient_id":   {key.ID},
	}
	var records []messageRecord
	if err := c.get(ctx, "/admin/messages", query, &records); err != nil {
		return nil, err
	}

	msgs := make([]chat.Message, 0, len(records))
	for _, r := range records {
		sender := chat.SenderCounterparty
		if r.Sender == string(chat.SenderAdmin) {
			sender = chat.SenderAdmin
		}
		msgs = append(msgs, chat.Message{
			ID:        string(r.ID),
			Text:      r.Text,
			Sender:    sender,
			Timestamp: time.UnixMilli(r.Timestamp),
			Delivery:  chat.DeliveryConfirmed,
		})
	}
	return msgs, nil
}

// SendMessage posts text to a counterparty. A 2xx means accepted for
// delivery, nothing more; the reconciling refetch picks up the stored copy.
func (c *Client) SendMessage(ctx context.Context, key chat.ConversationKey, text string) error {
	return c.post(ctx, "/admin/messages", sendRequest{
		Message:       text,
		RecipientType: string(key.Type),
		RecipientID:   key.ID,
	})
}
