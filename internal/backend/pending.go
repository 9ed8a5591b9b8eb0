package backend

import (
	"context"
	"net/url"
)

// StatusRecord is one entry of a pending-item list. The aggregator re-checks
// Status client-side before counting; the server-side filter parameter is
// asked for but not trusted.
type StatusRecord struct {
	ID     flexID `json:"id"`
	Status string `json:"status"`
}

func (c *Client) listStatus(ctx context.Context, path, status string) ([]StatusRecord, error) {
	var records []StatusRecord
	if err := c.get(ctx, path, url.Values{"status": {status}}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// PendingVendors lists vendor applications awaiting review.
func (c *Client) PendingVendors(ctx context.Context) ([]StatusRecord, error) {
	return c.listStatus(ctx, "/admin/vendors", "pending")
}

// PendingDrivers lists driver applications awaiting review.
func (c *Client) PendingDrivers(ctx context.Context) ([]StatusRecord, error) {
	return c.listStatus(ctx, "/admin/drivers", "pending")
}

// PendingPromotions lists promotions awaiting approval.
func (c *Client) PendingPromotions(ctx context.Context) ([]StatusRecord, error) {
	return c.listStatus(ctx, "/admin/promotions", "pending")
}

// PendingAds lists ad placements awaiting approval.
func (c *Client) PendingAds(ctx context.Context) ([]StatusRecord, error) {
	return c.listStatus(ctx, "/admin/ads", "pending")
}

// UnreadTickets lists support tickets with unread activity.
func (c *Client) UnreadTickets(ctx context.Context) ([]StatusRecord, error) {
	return c.listStatus(ctx, "/admin/support/tickets", "unread")
}
