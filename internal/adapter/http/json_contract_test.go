package httpadapter

import (
	"encoding/json"
	"testing"
	"time"

	"reefbase/internal/app/basebuild"
	"reefbase/internal/app/basestate"
	"reefbase/internal/app/collect"
	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/status"
	"reefbase/internal/domain/economy"
)

func TestResponseJSONUsesCamelCase(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	view := playerbase.NewView(economy.DefaultCatalog(), economy.DefaultRuleset(), playerbase.Seed("plr_1", now), now)
	updatedAt := basestate.FormatUpdatedAt(now)

	cases := []struct {
		name    string
		payload any
		want    []string
		notWant []string
	}{
		{
			name:    "state",
			payload: basestate.GetResponse{StateJSON: json.RawMessage(`{"version":1}`), UpdatedAt: &updatedAt},
			want:    []string{"stateJson", "updatedAt"},
			notWant: []string{"StateJSON", "state_json", "updated_at"},
		},
		{
			name:    "build",
			payload: basebuild.Response{Base: view, BuildingID: economy.BuildingCommandHub, Level: 1, Resources: economy.Resources{Cash: 400}},
			want:    []string{"base", "buildingId", "level", "cost", "resources"},
			notWant: []string{"BuildingID", "building_id"},
		},
		{
			name:    "collect",
			payload: collect.Response{Base: view, Collected: economy.Resources{Cash: 5}},
			want:    []string{"base", "collected", "resources", "elapsedSecs", "capped"},
			notWant: []string{"Collected", "elapsed_secs"},
		},
		{
			name:    "status",
			payload: status.Response{Base: view},
			want:    []string{"base", "actions", "cooldowns", "debuffs", "modifiers", "collectWindow"},
			notWant: []string{"Window", "collect_window"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.payload)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			for _, key := range tc.want {
				if _, ok := got[key]; !ok {
					t.Fatalf("expected key %q in %s", key, string(b))
				}
			}
			for _, key := range tc.notWant {
				if _, ok := got[key]; ok {
					t.Fatalf("unexpected key %q in %s", key, string(b))
				}
			}
			if base := asMap(got["base"]); base != nil {
				for _, key := range []string{"playerId", "nextChargeInMs", "lastCollectedAt"} {
					if _, ok := base[key]; !ok {
						t.Fatalf("expected nested key base.%s in %s", key, string(b))
					}
				}
			}
		})
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
