package memory

import (
	"context"

	"reefbase/internal/app/ports"
)

type PlayerCredentialRepo struct {
	store *Store
}

func NewPlayerCredentialRepo(store *Store) PlayerCredentialRepo {
	return PlayerCredentialRepo{store: store}
}

func (r PlayerCredentialRepo) Create(_ context.Context, credential ports.PlayerCredentialRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.credentials[credential.PlayerID]; exists {
		return ports.ErrConflict
	}
	r.store.credentials[credential.PlayerID] = credential
	return nil
}

func (r PlayerCredentialRepo) GetByPlayerID(_ context.Context, playerID string) (ports.PlayerCredentialRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	cred, ok := r.store.credentials[playerID]
	if !ok {
		return ports.PlayerCredentialRecord{}, ports.ErrNotFound
	}
	return cred, nil
}
