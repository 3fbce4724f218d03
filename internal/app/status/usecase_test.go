package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestUseCase_ListsActionsForBuiltBuildings(t *testing.T) {
	base := playerbase.Seed("plr_1", testNow.Add(-time.Hour))
	base.Levels[economy.BuildingRugSalvageYard] = 1
	base.Levels[economy.BuildingYieldFarm] = 2

	uc := UseCase{
		Bases:   statusBaseRepo{base: base},
		Catalog: economy.DefaultCatalog(),
		Rules:   economy.DefaultRuleset(),
		Now:     func() time.Time { return testNow },
	}
	resp, err := uc.Execute(context.Background(), Request{PlayerID: "plr_1"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if len(resp.Actions) != 3 {
		t.Fatalf("actions got=%d want=3", len(resp.Actions))
	}
	if resp.Base.Resources.Cash != 600 || resp.Base.Charges != 6 {
		t.Fatalf("unexpected base view: %+v", resp.Base)
	}
	if resp.Window.ElapsedSecs != 3600 || resp.Window.LimitSecs != (4*time.Hour).Seconds() {
		t.Fatalf("unexpected collect window: %+v", resp.Window)
	}
}

func TestUseCase_RejectsEmptyPlayerID(t *testing.T) {
	uc := UseCase{}
	if _, err := uc.Execute(context.Background(), Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestUseCase_PropagatesRepoError(t *testing.T) {
	uc := UseCase{Bases: statusBaseRepo{err: ports.ErrNotFound}}
	if _, err := uc.Execute(context.Background(), Request{PlayerID: "plr_1"}); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type statusBaseRepo struct {
	base ports.PlayerBase
	err  error
}

func (r statusBaseRepo) GetByPlayerID(_ context.Context, _ string) (ports.PlayerBase, error) {
	if r.err != nil {
		return ports.PlayerBase{}, r.err
	}
	return r.base, nil
}

func (r statusBaseRepo) SaveWithVersion(_ context.Context, _ ports.PlayerBase, _ int64, _ economy.Resources) error {
	return nil
}

var _ ports.PlayerBaseRepository = statusBaseRepo{}
