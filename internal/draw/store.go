package draw

import "context"

// Store persists draw results. A campaign gets at most one: Save returns
// sentinel.ErrConflict when a result already exists.
type Store interface {
	Save(ctx context.Context, r Result) error
	FindByCampaign(ctx context.Context, campaignID string) (Result, error)
}
