package basebuild

import (
	"context"
	"sync"
	"time"

	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubBaseRepo struct {
	mu    sync.Mutex
	bases map[string]ports.PlayerBase
	saves int
}

func newStubBaseRepo(bases ...ports.PlayerBase) *stubBaseRepo {
	r := &stubBaseRepo{bases: map[string]ports.PlayerBase{}}
	for _, b := range bases {
		r.bases[b.PlayerID] = b
	}
	return r
}

func (r *stubBaseRepo) GetByPlayerID(_ context.Context, playerID string) (ports.PlayerBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bases[playerID]
	if !ok {
		return ports.PlayerBase{}, ports.ErrNotFound
	}
	b.Levels = playerbase.CloneLevels(b.Levels)
	return b, nil
}

func (r *stubBaseRepo) SaveWithVersion(_ context.Context, base ports.PlayerBase, expectedVersion int64, debit economy.Resources) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.bases[base.PlayerID]
	if !ok || cur.Version != expectedVersion {
		return ports.ErrConflict
	}
	for _, k := range economy.AllResources {
		if cur.Resources.Get(k) < debit.Get(k) {
			return ports.ErrConflict
		}
	}
	r.bases[base.PlayerID] = base
	r.saves++
	return nil
}

type stubEventRepo struct {
	mu     sync.Mutex
	events []ports.BaseEvent
}

func (r *stubEventRepo) Append(_ context.Context, _ string, events []ports.BaseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *stubEventRepo) ListByPlayerID(_ context.Context, _ string, _ int) ([]ports.BaseEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.BaseEvent(nil), r.events...), nil
}

type stubTxManager struct{}

func (stubTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func seededBase(cash float64) ports.PlayerBase {
	b := playerbase.Seed("plr_1", testNow)
	b.Resources = economy.Resources{Cash: cash}
	return b
}

func newUseCase(repo *stubBaseRepo, events *stubEventRepo) UseCase {
	return UseCase{
		Bases:     repo,
		Events:    events,
		TxManager: stubTxManager{},
		Catalog:   economy.DefaultCatalog(),
		Rules:     economy.DefaultRuleset(),
		Now:       func() time.Time { return testNow },
	}
}
