package audit

import "context"

// Fanout appends every event to each backing store. The first store is the
// read path for ListByIdentity; later stores are write-only sinks such as
// Kafka.
type Fanout struct {
	stores []Store
}

func NewFanout(stores ...Store) *Fanout {
	return &Fanout{stores: stores}
}

func (f *Fanout) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, s := range f.stores {
		if err := s.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Fanout) ListByIdentity(ctx context.Context, identityID string) ([]Event, error) {
	return f.stores[0].ListByIdentity(ctx, identityID)
}
