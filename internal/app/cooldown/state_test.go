package cooldown

import (
	"testing"

	"reefbase/internal/domain/economy"
)

func TestRemainingSeconds_RoundsUp(t *testing.T) {
	cases := map[int64]int{0: 0, -5: 0, 1: 1, 999: 1, 1000: 1, 1001: 2, 290_000: 290}
	for ms, want := range cases {
		if got := RemainingSeconds(ms); got != want {
			t.Fatalf("RemainingSeconds(%d) got=%d want=%d", ms, got, want)
		}
	}
	if RetryAfter(0) != "1" {
		t.Fatalf("retry-after must never be zero")
	}
}

func TestRemainingByAction_SkipsReadyActions(t *testing.T) {
	salvage := economy.ActionKey{Building: economy.BuildingRugSalvageYard, Action: "salvage"}
	got := RemainingByAction([]economy.ActionStatus{
		{Key: salvage, CooldownRemainingMs: 1500},
		{Key: economy.ActionKey{Building: economy.BuildingYieldFarm, Action: "harvest"}},
	})
	if len(got) != 1 || got[salvage.String()] != 2 {
		t.Fatalf("unexpected cooldowns: %+v", got)
	}
}
