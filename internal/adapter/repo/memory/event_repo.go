package memory

import (
	"context"

	"reefbase/internal/app/ports"
)

type EventRepo struct {
	store *Store
}

func NewEventRepo(store *Store) EventRepo {
	return EventRepo{store: store}
}

func (r EventRepo) Append(_ context.Context, playerID string, events []ports.BaseEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.events[playerID] = append(r.store.events[playerID], events...)
	return nil
}

// ListByPlayerID returns the newest events first.
func (r EventRepo) ListByPlayerID(_ context.Context, playerID string, limit int) ([]ports.BaseEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	all := r.store.events[playerID]
	out := make([]ports.BaseEvent, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}
