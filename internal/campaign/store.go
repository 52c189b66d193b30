package campaign

import (
	"context"
	"time"
)

// Store persists campaigns.
type Store interface {
	Create(ctx context.Context, c Campaign) error
	FindByID(ctx context.Context, id string) (Campaign, error)
	// Close transitions Open -> Closed atomically. Returns
	// sentinel.ErrInvalidState when already closed, sentinel.ErrNotFound when
	// unknown.
	Close(ctx context.Context, id string, at time.Time) error
	// ListOpen returns open campaigns ordered by closes_at ascending.
	ListOpen(ctx context.Context) ([]Campaign, error)
	SetAnnouncementRef(ctx context.Context, id, ref string) error
}
