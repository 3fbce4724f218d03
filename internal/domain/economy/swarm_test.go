package economy

import "testing"

func TestSyncSwarms_FollowsDebuffs(t *testing.T) {
	rules := DefaultRuleset()
	mech := withDebuff(NewMechanicsState(), DebuffFuders, testNow+5000)
	swarms := SyncSwarms(rules, nil, mech, testNow, nil)
	s, ok := swarms[DebuffFuders]
	if !ok || len(s.Units) != 10 {
		t.Fatalf("expected fuders swarm with 10 units, got=%+v", swarms)
	}
	swarms = SyncSwarms(rules, swarms, mech, testNow+5000, nil)
	if len(swarms) != 0 {
		t.Fatalf("expected swarm destroyed with debuff, got=%d", len(swarms))
	}
}

func TestSwarmUpdate_LungeRecordsImpact(t *testing.T) {
	rules := DefaultRuleset()
	s := NewSwarm(rules, DebuffMevBots, testNow+60_000, testNow, nil)
	placements := Placements{"c5": {BuildingID: BuildingCommandHub, Tier: 1}}
	cells := DefaultCells()

	if imp := s.Update(rules, cells, placements, testNow+4000, nil); len(imp) != 0 {
		t.Fatalf("impact before reaching target: %+v", imp)
	}
	for _, u := range s.Units {
		if u.Phase != PhaseLunge || u.TargetCell != "c5" {
			t.Fatalf("expected every unit lunging at c5, got=%+v", u)
		}
	}
	imp := s.Update(rules, cells, placements, testNow+5000, nil)
	if len(imp) != len(s.Units) {
		t.Fatalf("impacts got=%d want=%d", len(imp), len(s.Units))
	}
	if imp[0].Cell != "c5" || imp[0].CashLoss != 2 {
		t.Fatalf("unexpected impact: %+v", imp[0])
	}
}

func TestSwarmWipeAt_KillsAndKnocksBack(t *testing.T) {
	rules := DefaultRuleset()
	s := NewSwarm(rules, DebuffMevBots, testNow+60_000, testNow, nil)
	target := s.Units[0]

	res := s.WipeAt(rules, target.Pos.X, target.Pos.Y)
	if res.Hits != 1 || res.Killed != 0 {
		t.Fatalf("first click got=%+v", res)
	}
	hit := s.Units[0]
	if hit.HP != 1 || hit.Radius <= rules.Swarm.OrbitRadius {
		t.Fatalf("expected damaged unit pushed outward, got=%+v", hit)
	}
	res = s.WipeAt(rules, hit.Pos.X, hit.Pos.Y)
	if res.Killed != 1 || len(s.Units) != 5 {
		t.Fatalf("second click got=%+v units=%d", res, len(s.Units))
	}
}

func TestPerfectClear_RemovesDebuffAndGrantsTicket(t *testing.T) {
	rules := DefaultRuleset()
	mech := withDebuff(NewMechanicsState(), DebuffJeets, testNow+60_000)
	mech, res, ok := PerfectClear(rules, mech, Resources{Tickets: 2}, rules.BaseCaps, DebuffJeets, testNow)
	if !ok || res.Tickets != 3 || mech.HasDebuff(DebuffJeets, testNow) {
		t.Fatalf("unexpected clear: ok=%v res=%+v debuffs=%+v", ok, res, mech.Debuffs)
	}
	if _, _, ok := PerfectClear(rules, mech, res, rules.BaseCaps, DebuffJeets, testNow); ok {
		t.Fatalf("second clear must be a no-op")
	}
}
