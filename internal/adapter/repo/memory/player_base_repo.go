package memory

import (
	"context"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

type PlayerBaseRepo struct {
	store *Store
}

func NewPlayerBaseRepo(store *Store) PlayerBaseRepo {
	return PlayerBaseRepo{store: store}
}

func (r PlayerBaseRepo) GetByPlayerID(_ context.Context, playerID string) (ports.PlayerBase, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	base, ok := r.store.bases[playerID]
	if !ok {
		return ports.PlayerBase{}, ports.ErrNotFound
	}
	return cloneBase(base), nil
}

func (r PlayerBaseRepo) SaveWithVersion(_ context.Context, base ports.PlayerBase, expectedVersion int64, debit economy.Resources) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.bases[base.PlayerID]
	if !ok {
		if expectedVersion != 0 {
			return ports.ErrConflict
		}
		r.store.bases[base.PlayerID] = cloneBase(base)
		return nil
	}
	if current.Version != expectedVersion {
		return ports.ErrConflict
	}
	for _, k := range economy.AllResources {
		if current.Resources.Get(k) < debit.Get(k) {
			return ports.ErrConflict
		}
	}
	r.store.bases[base.PlayerID] = cloneBase(base)
	return nil
}
