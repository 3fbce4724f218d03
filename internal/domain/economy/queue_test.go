package economy

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildScenario_RugSalvageYardFromSixHundredCash(t *testing.T) {
	rules := DefaultRuleset()
	catalog := DefaultCatalog()
	def, _ := catalog.Building(BuildingRugSalvageYard)
	next := def.Tier(1)

	res, a := Spend(rules, Resources{Cash: 600}, next.Cost, 0)
	if !a.OK || res.Cash != 300 {
		t.Fatalf("spend got=%+v cash=%v", a, res.Cash)
	}
	dur := BuildDuration(next.Duration, 1, nil)
	q, ok := EnqueueJob(Queue{}, BuildJob{
		ID: "j1", CellID: "c3", BuildingID: BuildingRugSalvageYard,
		ToTier: 1, Type: JobBuild, DurationMs: dur.Milliseconds(), CostPaid: true,
	}, testNow, DefaultQueueLimit)
	if !ok || q.Active == nil || q.Active.DurationMs != 45_000 {
		t.Fatalf("expected active 45s build job, got=%+v", q)
	}

	q, done := TickQueue(q, testNow+44_999)
	if len(done) != 0 {
		t.Fatalf("completed early: %+v", done)
	}
	q, done = TickQueue(q, testNow+45_000)
	if len(done) != 1 || q.Len() != 0 {
		t.Fatalf("expected completion and empty queue, got done=%d len=%d", len(done), q.Len())
	}
	placements := ApplyCompletedJob(Placements{}, done[0])
	if got := placements["c3"]; got.BuildingID != BuildingRugSalvageYard || got.Tier != 1 {
		t.Fatalf("placement got=%+v", got)
	}
}

func TestEnqueueJob_FullQueueIsNoop(t *testing.T) {
	q, _ := EnqueueJob(Queue{}, BuildJob{ID: "a", CellID: "c0", DurationMs: 1000}, testNow, 1)
	q, ok := EnqueueJob(q, BuildJob{ID: "b", CellID: "c1", DurationMs: 1000}, testNow, 1)
	if !ok || q.Active == nil || len(q.Queued) != 1 {
		t.Fatalf("expected active + one queued, got=%+v", q)
	}
	if q.Queued[0].Started() {
		t.Fatalf("queued job must not be scheduled")
	}
	before := q
	after, ok := EnqueueJob(q, BuildJob{ID: "c", CellID: "c2", DurationMs: 1000}, testNow, 1)
	if ok {
		t.Fatalf("expected full queue to reject")
	}
	if !reflect.DeepEqual(before, after) || after.Active != before.Active {
		t.Fatalf("full queue changed: before=%+v after=%+v", before, after)
	}
}

func TestTickQueue_PromotesWithTickTime(t *testing.T) {
	q, _ := EnqueueJob(Queue{}, BuildJob{ID: "a", CellID: "c0", DurationMs: 1000}, testNow, 1)
	q, _ = EnqueueJob(q, BuildJob{ID: "b", CellID: "c1", DurationMs: 5000}, testNow, 1)

	later := testNow + 3000
	q, done := TickQueue(q, later)
	if len(done) != 1 || done[0].ID != "a" {
		t.Fatalf("expected a completed, got=%+v", done)
	}
	if q.Active == nil || q.Active.ID != "b" || *q.Active.StartedAtMs != later {
		t.Fatalf("expected b promoted at tick time, got=%+v", q.Active)
	}
	if q.Active.RemainingMs(later+1000) != 4000 {
		t.Fatalf("remaining got=%d want=4000", q.Active.RemainingMs(later+1000))
	}
}

func TestRemoveCellJobs_PromotesNext(t *testing.T) {
	q, _ := EnqueueJob(Queue{}, BuildJob{ID: "a", CellID: "c0", DurationMs: 1000}, testNow, 1)
	q, _ = EnqueueJob(q, BuildJob{ID: "b", CellID: "c1", DurationMs: 1000}, testNow, 1)
	q = RemoveCellJobs(q, "c0", testNow+10)
	if q.Active == nil || q.Active.ID != "b" || len(q.Queued) != 0 {
		t.Fatalf("unexpected queue after removal: %+v", q)
	}
	if q.HasJobForCell("c0") {
		t.Fatalf("removed cell still has a job")
	}
}

func TestApplyCompletedJob_Upgrade(t *testing.T) {
	p := Placements{"c0": {BuildingID: BuildingYieldFarm, Tier: 1}}
	out := ApplyCompletedJob(p, BuildJob{CellID: "c0", BuildingID: BuildingYieldFarm, FromTier: 1, ToTier: 2, Type: JobUpgrade})
	if out["c0"].Tier != 2 || p["c0"].Tier != 1 {
		t.Fatalf("upgrade got=%+v original=%+v", out["c0"], p["c0"])
	}
}

func TestBuildDuration_ThreatAndPerk(t *testing.T) {
	got := BuildDuration(100*time.Second, 1.5, []Perk{PerkEfficientBuilders})
	if got != 135*time.Second {
		t.Fatalf("duration got=%s want=135s", got)
	}
}
