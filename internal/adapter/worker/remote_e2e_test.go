//go:build e2e

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

// Run against a live worker: go test -tags e2e ./internal/adapter/worker
func TestRemoteAPI_PlayerLifecycle(t *testing.T) {
	baseURL := envOr("REEF_E2E_BASE_URL", "http://127.0.0.1:8080")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, key, err := Register(ctx, baseURL)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c, err := New(Config{BaseURL: baseURL, PlayerID: id, PlayerKey: key})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	t.Run("blob save and conflict", func(t *testing.T) {
		got, err := c.FetchState(ctx)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if got.UpdatedAt != nil {
			t.Fatalf("fresh player should have no blob, got updatedAt=%s", *got.UpdatedAt)
		}
		snap, _ := json.Marshal(economy.NewBaseSnapshot())
		if _, err := c.SaveState(ctx, snap, nil); err != nil {
			t.Fatalf("first save: %v", err)
		}
		time.Sleep(2100 * time.Millisecond)
		_, err = c.SaveState(ctx, snap, nil)
		var stale *ports.StaleStateError
		if !errors.As(err, &stale) || stale.UpdatedAt == "" {
			t.Fatalf("expected stale conflict, got %v", err)
		}
	})

	t.Run("build collect action", func(t *testing.T) {
		built, err := c.Build(ctx, economy.BuildingRugSalvageYard)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if built.Levels[economy.BuildingRugSalvageYard] != 1 {
			t.Fatalf("levels got=%v", built.Levels)
		}
		if _, err := c.Collect(ctx); err != nil {
			t.Fatalf("collect: %v", err)
		}
		after, err := c.UseAction(ctx, economy.ActionKey{Building: economy.BuildingRugSalvageYard, Action: economy.ActionSalvage})
		if err != nil {
			t.Fatalf("salvage: %v", err)
		}
		if after.Resources.Cash <= built.Resources.Cash {
			t.Fatalf("salvage paid nothing: before=%v after=%v", built.Resources.Cash, after.Resources.Cash)
		}
		_, err = c.UseAction(ctx, economy.ActionKey{Building: economy.BuildingRugSalvageYard, Action: economy.ActionSalvage})
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != economy.ReasonCooldown {
			t.Fatalf("expected cooldown rejection, got %v", err)
		}
		st, err := c.Status(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Resources.Cash < after.Resources.Cash || st.Levels[economy.BuildingRugSalvageYard] != 1 {
			t.Fatalf("status after rejected salvage got=%+v", st)
		}
	})
}

func envOr(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
