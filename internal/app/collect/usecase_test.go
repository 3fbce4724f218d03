package collect

import (
	"context"
	"testing"
	"time"

	"reefbase/internal/domain/economy"
)

func TestExecute_CollectsElapsedProduction(t *testing.T) {
	base := seededBase(0)
	base.Levels[economy.BuildingRugSalvageYard] = 1
	base.LastCollectedAt = testNow.Add(-100 * time.Second)
	repo := newStubBaseRepo(base)
	events := &stubEventRepo{}
	uc := newUseCase(repo, events)

	resp, err := uc.Execute(context.Background(), Request{PlayerID: "plr_1"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if resp.Collected.Cash != 50 || resp.Resources.Cash != 50 || resp.Capped {
		t.Fatalf("unexpected collect: %+v", resp)
	}
	stored, _ := repo.GetByPlayerID(context.Background(), "plr_1")
	if !stored.LastCollectedAt.Equal(testNow) || stored.Version != 2 {
		t.Fatalf("unexpected stored base: %+v", stored)
	}
	if len(events.events) != 1 || events.events[0].Type != EventBaseCollect {
		t.Fatalf("expected collect event, got=%+v", events.events)
	}

	again, err := uc.Execute(context.Background(), Request{PlayerID: "plr_1"})
	if err != nil || !again.Collected.IsZero() {
		t.Fatalf("immediate second collect got=%+v err=%v", again, err)
	}
}

func TestExecute_CapsOfflineWindow(t *testing.T) {
	base := seededBase(0)
	base.Levels[economy.BuildingYieldFarm] = 1
	base.Levels[economy.BuildingStorageSilo] = 1
	base.LastCollectedAt = testNow.Add(-24 * time.Hour)
	uc := newUseCase(newStubBaseRepo(base), &stubEventRepo{})

	resp, err := uc.Execute(context.Background(), Request{PlayerID: "plr_1"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !resp.Capped || resp.ElapsedSecs != (6*time.Hour).Seconds() {
		t.Fatalf("expected 6h window, got=%+v", resp)
	}
	caps := economy.ComputeCaps(economy.DefaultRuleset(), economy.Placements{
		"c0": {BuildingID: economy.BuildingStorageSilo, Tier: 1},
	}, nil)
	if resp.Resources.Yield > caps.Yield {
		t.Fatalf("yield %v exceeds cap %v", resp.Resources.Yield, caps.Yield)
	}
}

func TestWindow_GrowsWithSilo(t *testing.T) {
	if got := Window(map[economy.BuildingID]int{economy.BuildingStorageSilo: 3}); got != 10*time.Hour {
		t.Fatalf("window got=%s want=10h", got)
	}
}
