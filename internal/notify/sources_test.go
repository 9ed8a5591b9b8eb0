package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/dispatchgrid/opsdesk/internal/backend"
)

type fakePendingAPI struct {
	vendors, drivers, promotions, ads, tickets []backend.StatusRecord
	err                                        error
}

func (f *fakePendingAPI) PendingVendors(context.Context) ([]backend.StatusRecord, error) {
	return f.vendors, f.err
}
func (f *fakePendingAPI) PendingDrivers(context.Context) ([]backend.StatusRecord, error) {
	return f.drivers, f.err
}
func (f *fakePendingAPI) PendingPromotions(context.Context) ([]backend.StatusRecord, error) {
	return f.promotions, f.err
}
func (f *fakePendingAPI) PendingAds(context.Context) ([]backend.StatusRecord, error) {
	return f.ads, f.err
}
func (f *fakePendingAPI) UnreadTickets(context.Context) ([]backend.StatusRecord, error) {
	return f.tickets, f.err
}

func records(statuses ...string) []backend.StatusRecord {
	out := make([]backend.StatusRecord, len(statuses))
	for i, s := range statuses {
		out[i].Status = s
	}
	return out
}

func fetchByName(t *testing.T, srcs []Source, name string) func(context.Context) (int, error) {
	t.Helper()
	for _, s := range srcs {
		if s.Name == name {
			return s.Fetch
		}
	}
	t.Fatalf("no source named %q", name)
	return nil
}

func TestSourcesRefilterClientSide(t *testing.T) {
	// The server was asked for status=pending but returned a mixed list;
	// only literal matches count.
	api := &fakePendingAPI{
		vendors: records("pending", "approved", "pending", "Pending"),
		tickets: records("unread", "read", "unread"),
	}
	srcs := Sources(api)

	n, err := fetchByName(t, srcs, SourceVendors)(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("vendors = %d, want 2 (exact status matches only)", n)
	}

	n, err = fetchByName(t, srcs, SourceTickets)(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("tickets = %d, want 2 (unread filter)", n)
	}
}

func TestSourcesCoverAllFive(t *testing.T) {
	srcs := Sources(&fakePendingAPI{})
	if len(srcs) != 5 {
		t.Fatalf("got %d sources, want 5", len(srcs))
	}
	seen := make(map[string]bool)
	for _, s := range srcs {
		seen[s.Name] = true
	}
	for _, name := range []string{SourceVendors, SourceDrivers, SourcePromotions, SourceAds, SourceTickets} {
		if !seen[name] {
			t.Errorf("missing source %q", name)
		}
	}
}

func TestSourcePropagatesFetchError(t *testing.T) {
	api := &fakePendingAPI{err: errors.New("boom")}
	srcs := Sources(api)
	if _, err := fetchByName(t, srcs, SourceAds)(context.Background()); err == nil {
		t.Error("fetch error swallowed")
	}
}
