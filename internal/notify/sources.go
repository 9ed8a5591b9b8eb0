package notify

import (
	"context"

	"github.com/dispatchgrid/opsdesk/internal/backend"
)

// Canonical source names, also the cache and badge keys.
const (
	SourceVendors    = "pending_vendors"
	SourceDrivers    = "pending_drivers"
	SourcePromotions = "pending_promotions"
	SourceAds        = "pending_ads"
	SourceTickets    = "unread_tickets"
)

// PendingAPI is the slice of the backend the sources consume.
type PendingAPI interface {
	PendingVendors(ctx context.Context) ([]backend.StatusRecord, error)
	PendingDrivers(ctx context.Context) ([]backend.StatusRecord, error)
	PendingPromotions(ctx context.Context) ([]backend.StatusRecord, error)
	PendingAds(ctx context.Context) ([]backend.StatusRecord, error)
	UnreadTickets(ctx context.Context) ([]backend.StatusRecord, error)
}

// Sources builds the five badge sources. Each one re-checks the status field
// client-side before counting: the list endpoints are asked to filter
// server-side, but the filter parameter is not trusted.
func Sources(api PendingAPI) []Source {
	return []Source{
		{Name: SourceVendors, Fetch: counting(api.PendingVendors, "pending")},
		{Name: SourceDrivers, Fetch: counting(api.PendingDrivers, "pending")},
		{Name: SourcePromotions, Fetch: counting(api.PendingPromotions, "pending")},
		{Name: SourceAds, Fetch: counting(api.PendingAds, "pending")},
		{Name: SourceTickets, Fetch: counting(api.UnreadTickets, "unread")},
	}
}

func counting(list func(ctx context.Context) ([]backend.StatusRecord, error), status string) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		records, err := list(ctx)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, r := range records {
			if r.Status == status {
				n++
			}
		}
		return n, nil
	}
}
