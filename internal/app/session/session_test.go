package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

func TestSession_BuildRugSalvageYardScenario(t *testing.T) {
	m := &mutations{}
	s := newTestSession(snapshotWith(600, nil), m)

	job, err := s.EnqueueBuild("c3", economy.BuildingRugSalvageYard, testNow)
	if err != nil {
		t.Fatalf("enqueue build: %v", err)
	}
	if job.DurationMs != 45_000 || !job.Started() {
		t.Fatalf("expected active 45s job, got=%+v", job)
	}
	v := s.View(testNow)
	if v.Resources.Cash != 300 || len(v.Queue) != 1 || !v.Queue[0].Active {
		t.Fatalf("unexpected view after enqueue: cash=%v queue=%+v", v.Resources.Cash, v.Queue)
	}

	if rep := s.Tick(testNow.Add(44_999 * time.Millisecond)); len(rep.Completed) != 0 {
		t.Fatalf("completed early: %+v", rep.Completed)
	}
	rep := s.Tick(testNow.Add(45 * time.Second))
	if len(rep.Completed) != 1 {
		t.Fatalf("expected completion, got=%+v", rep)
	}
	v = s.View(testNow.Add(45 * time.Second))
	if got := v.Placements["c3"]; got.BuildingID != economy.BuildingRugSalvageYard || got.Tier != 1 {
		t.Fatalf("placement got=%+v", got)
	}
	if len(v.Queue) != 0 {
		t.Fatalf("expected empty queue, got=%+v", v.Queue)
	}
	if v.Rates.Cash <= 0 {
		t.Fatalf("expected passive cash rate after completion, got=%+v", v.Rates)
	}
	if m.n != 2 {
		t.Fatalf("mutations got=%d want=2", m.n)
	}
}

func TestSession_FudersFloorYield(t *testing.T) {
	s := newTestSession(snapshotWith(0, economy.Placements{"c0": {BuildingID: economy.BuildingYieldFarm, Tier: 1}}), nil)
	if !s.TriggerDebuff(economy.DebuffFuders, testNow) {
		t.Fatalf("trigger fuders failed")
	}
	for i := 1; i <= 100; i++ {
		s.Tick(testNow.Add(time.Duration(i) * time.Second))
	}
	v := s.View(testNow.Add(100 * time.Second))
	if !approx(v.Resources.Yield, 0.5) {
		t.Fatalf("yield after 100s got=%v want=0.5", v.Resources.Yield)
	}
	if len(v.Swarms) != 1 || v.Swarms[0].Kind != economy.DebuffFuders {
		t.Fatalf("expected fuders swarm, got=%+v", v.Swarms)
	}
}

func TestSession_PassiveIncomeMarksDirty(t *testing.T) {
	m := &mutations{}
	s := newTestSession(snapshotWith(0, economy.Placements{"c0": {BuildingID: economy.BuildingRugSalvageYard, Tier: 1}}), m)
	rep := s.Tick(testNow.Add(time.Second))
	if !rep.Accrued || m.n != 1 {
		t.Fatalf("idle income not reported: accrued=%v mutations=%d", rep.Accrued, m.n)
	}

	empty := &mutations{}
	s = newTestSession(snapshotWith(0, nil), empty)
	if rep := s.Tick(testNow.Add(time.Second)); rep.Accrued || empty.n != 0 {
		t.Fatalf("empty base reported accrual: accrued=%v mutations=%d", rep.Accrued, empty.n)
	}
}

func TestSession_FullQueueIsNoop(t *testing.T) {
	s := newTestSession(snapshotWith(5000, nil), nil)
	if _, err := s.EnqueueBuild("c0", economy.BuildingRugSalvageYard, testNow); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := s.EnqueueBuild("c1", economy.BuildingCommandHub, testNow); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	before := s.Snapshot(testNow)
	if _, err := s.EnqueueBuild("c2", economy.BuildingYieldFarm, testNow); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	after := s.Snapshot(testNow)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("full queue changed state:\nbefore=%+v\nafter=%+v", before, after)
	}
}

func TestSession_EnqueueValidation(t *testing.T) {
	s := newTestSession(snapshotWith(100, economy.Placements{"c0": {BuildingID: economy.BuildingCommandHub, Tier: economy.MaxTier}}), nil)
	cases := []struct {
		cell     economy.CellID
		building economy.BuildingID
		want     error
	}{
		{"c1", "moon_base", ErrUnknownBuilding},
		{"c99", economy.BuildingYieldFarm, ErrUnknownCell},
		{"c0", economy.BuildingYieldFarm, ErrCellOccupied},
		{"c1", economy.BuildingCommandHub, ErrAlreadyPlaced},
	}
	for _, tc := range cases {
		if _, err := s.EnqueueBuild(tc.cell, tc.building, testNow); !errors.Is(err, tc.want) {
			t.Fatalf("enqueue %s on %s got=%v want=%v", tc.building, tc.cell, err, tc.want)
		}
	}
	if _, err := s.EnqueueUpgrade("c0", testNow); !errors.Is(err, ErrMaxTier) {
		t.Fatalf("expected ErrMaxTier, got %v", err)
	}
	if _, err := s.EnqueueUpgrade("c5", testNow); !errors.Is(err, ErrNotPlaced) {
		t.Fatalf("expected ErrNotPlaced, got %v", err)
	}

	_, err := s.EnqueueBuild("c1", economy.BuildingRugSalvageYard, testNow)
	var afford *AffordabilityError
	if !errors.As(err, &afford) || afford.Blocking != "cash" {
		t.Fatalf("expected cash affordability error, got %v", err)
	}
	if v := s.View(testNow); v.Resources.Cash != 100 || len(v.Queue) != 0 {
		t.Fatalf("failed enqueue mutated state: %+v", v)
	}
}

func TestSession_UseAction(t *testing.T) {
	m := &mutations{}
	s := newTestSession(snapshotWith(0, nil), m)
	salvage := economy.ActionKey{Building: economy.BuildingRugSalvageYard, Action: economy.ActionSalvage}
	if r := s.UseAction(salvage, testNow); r.OK || r.Reason != economy.ReasonNotPlaced {
		t.Fatalf("expected BUILDING_NOT_PLACED, got=%+v", r)
	}
	if v := s.View(testNow); v.Resources.Cash != 0 || v.Charges != 6 || m.n != 0 {
		t.Fatalf("unplaced action changed state: cash=%v charges=%d mutations=%d", v.Resources.Cash, v.Charges, m.n)
	}

	s = newTestSession(snapshotWith(600, economy.Placements{"c0": {BuildingID: economy.BuildingRugSalvageYard, Tier: 1}}), nil)
	r := s.UseAction(salvage, testNow)
	if !r.OK || r.Resources.Cash != 720 {
		t.Fatalf("expected salvage payout, got=%+v", r)
	}
	v := s.View(testNow)
	if v.Charges != 5 || v.Resources.Cash != 720 {
		t.Fatalf("view after salvage: charges=%d cash=%v", v.Charges, v.Resources.Cash)
	}
	if len(v.Actions) != 1 || v.Actions[0].CooldownRemainingMs != 300_000 {
		t.Fatalf("expected salvage on cooldown, got=%+v", v.Actions)
	}
}

func TestSession_RemovePlacementForfeitsJob(t *testing.T) {
	s := newTestSession(snapshotWith(600, nil), nil)
	if _, err := s.EnqueueBuild("c2", economy.BuildingRugSalvageYard, testNow); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.RemovePlacement("c2", testNow); err != nil {
		t.Fatalf("remove: %v", err)
	}
	v := s.View(testNow)
	if len(v.Queue) != 0 || v.Resources.Cash != 300 {
		t.Fatalf("expected job dropped without refund, got queue=%+v cash=%v", v.Queue, v.Resources.Cash)
	}
	if err := s.RemovePlacement("c2", testNow); !errors.Is(err, ErrNotPlaced) {
		t.Fatalf("expected ErrNotPlaced on empty cell, got %v", err)
	}
}

func TestSession_WipeSwarmPerfectClear(t *testing.T) {
	s := newTestSession(snapshotWith(0, nil), nil)
	s.TriggerDebuff(economy.DebuffMevBots, testNow)
	s.Tick(testNow)

	cleared := false
	for i := 0; i < 100 && !cleared; i++ {
		v := s.View(testNow)
		if len(v.Swarms) == 0 {
			t.Fatalf("swarm vanished without a clear")
		}
		u := v.Swarms[0].Units[0]
		rep := s.WipeSwarmAt(u.Pos.X, u.Pos.Y, testNow)
		if rep.Hits == 0 {
			t.Fatalf("click on unit missed: %+v", u)
		}
		cleared = len(rep.Cleared) == 1
	}
	if !cleared {
		t.Fatalf("swarm never cleared")
	}
	v := s.View(testNow)
	if v.Resources.Tickets != 1 || len(v.Debuffs) != 0 || len(v.Swarms) != 0 {
		t.Fatalf("expected ticket bonus and debuff removed, got tickets=%v debuffs=%+v", v.Resources.Tickets, v.Debuffs)
	}
}

func TestSession_ReplaceAndReconcile(t *testing.T) {
	s := newTestSession(snapshotWith(600, nil), nil)
	if _, err := s.EnqueueBuild("c0", economy.BuildingRugSalvageYard, testNow); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	server := snapshotWith(900, economy.Placements{"c4": {BuildingID: economy.BuildingCommandHub, Tier: 2}})
	s.Replace(server, testNow)
	v := s.View(testNow)
	if len(v.Queue) != 0 || v.Resources.Cash != 900 || v.Placements["c4"].Tier != 2 || len(v.Placements) != 1 {
		t.Fatalf("replace did not overwrite local state: %+v", v)
	}

	s.Reconcile(ports.RemoteBase{
		Resources: economy.Resources{Cash: 42},
		Levels:    map[economy.BuildingID]int{economy.BuildingCommandHub: 3, economy.BuildingYieldFarm: 1},
		Charges:   2,
		Version:   7,
	}, testNow)
	v = s.View(testNow)
	if v.Resources.Cash != 42 || v.Placements["c4"].Tier != 3 || v.Charges != 2 {
		t.Fatalf("reconcile mismatch: cash=%v placements=%+v charges=%d", v.Resources.Cash, v.Placements, v.Charges)
	}
	if _, ok := v.Placements["c0"]; !ok || v.Placements["c0"].BuildingID != economy.BuildingYieldFarm {
		t.Fatalf("expected server-only building placed on first free cell, got=%+v", v.Placements)
	}
}

func TestSession_RunTickerStopsOnCancel(t *testing.T) {
	s := newTestSession(snapshotWith(0, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	views := make(chan View, 8)
	done := make(chan struct{})
	go func() {
		s.RunTicker(ctx, 5*time.Millisecond, nil, func(v View) {
			select {
			case views <- v:
			default:
			}
		})
		close(done)
	}()
	select {
	case <-views:
	case <-time.After(2 * time.Second):
		t.Fatalf("no tick observed")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ticker did not stop")
	}
}
