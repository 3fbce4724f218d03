package memory

import (
	"context"
	"time"

	"reefbase/internal/app/ports"
)

type BaseStateRepo struct {
	store *Store
}

func NewBaseStateRepo(store *Store) BaseStateRepo {
	return BaseStateRepo{store: store}
}

func (r BaseStateRepo) GetByPlayerID(_ context.Context, playerID string) (ports.BaseStateRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.states[playerID]
	if !ok {
		return ports.BaseStateRecord{}, ports.ErrNotFound
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec, nil
}

func (r BaseStateRepo) SaveIfUnchanged(_ context.Context, rec ports.BaseStateRecord, expected *time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.states[rec.PlayerID]
	switch {
	case expected == nil && ok:
		return ports.ErrConflict
	case expected != nil && (!ok || !current.UpdatedAt.Equal(*expected)):
		return ports.ErrConflict
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	r.store.states[rec.PlayerID] = rec
	return nil
}
