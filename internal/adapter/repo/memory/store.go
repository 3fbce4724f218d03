package memory

import (
	"sync"

	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
)

// Store backs every in-memory repository. mu guards the maps; txMu serialises
// RunInTx callers so a read-decide-write sequence cannot interleave.
type Store struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	states      map[string]ports.BaseStateRecord
	bases       map[string]ports.PlayerBase
	events      map[string][]ports.BaseEvent
	credentials map[string]ports.PlayerCredentialRecord
}

func NewStore() *Store {
	return &Store{
		states:      make(map[string]ports.BaseStateRecord),
		bases:       make(map[string]ports.PlayerBase),
		events:      make(map[string][]ports.BaseEvent),
		credentials: make(map[string]ports.PlayerCredentialRecord),
	}
}

func (s *Store) SeedBase(base ports.PlayerBase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bases[base.PlayerID] = cloneBase(base)
}

func cloneBase(b ports.PlayerBase) ports.PlayerBase {
	out := b
	out.Levels = playerbase.CloneLevels(b.Levels)
	out.Mechanics = b.Mechanics.Clone()
	return out
}
