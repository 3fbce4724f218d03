// Package playerbase holds the helpers the server use cases share when reading and
// rendering the authoritative player base row.
package playerbase

import (
	"fmt"
	"sort"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

// StartingResources is what a freshly registered base holds.
var StartingResources = economy.Resources{Cash: 600}

func Seed(playerID string, now time.Time) ports.PlayerBase {
	now = now.UTC()
	return ports.PlayerBase{
		PlayerID:        playerID,
		Resources:       StartingResources,
		Levels:          map[economy.BuildingID]int{},
		Mechanics:       economy.NewMechanicsState(),
		LastCollectedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
}

// Placements projects building levels onto synthetic cells so the ledger can derive
// caps and rates. Cells are assigned in catalog priority order.
func Placements(catalog economy.Catalog, levels map[economy.BuildingID]int) economy.Placements {
	out := economy.Placements{}
	i := 0
	for _, def := range catalog.Buildings() {
		tier := levels[def.ID]
		if tier <= 0 {
			continue
		}
		out[economy.CellID(fmt.Sprintf("c%d", i))] = economy.Placement{BuildingID: def.ID, Tier: tier}
		i++
	}
	return out
}

func Caps(catalog economy.Catalog, rules economy.Ruleset, base ports.PlayerBase) economy.Resources {
	return economy.ComputeCaps(rules, Placements(catalog, base.Levels), base.Mechanics.Perks)
}

func DayIndex(base ports.PlayerBase, now time.Time) int {
	return economy.GameDay(base.CreatedAt.UnixMilli(), now.UnixMilli())
}

func CloneLevels(levels map[economy.BuildingID]int) map[economy.BuildingID]int {
	out := make(map[economy.BuildingID]int, len(levels))
	for k, v := range levels {
		out[k] = v
	}
	return out
}

type View struct {
	PlayerID        string                     `json:"playerId"`
	Resources       economy.Resources          `json:"resources"`
	Levels          map[economy.BuildingID]int `json:"levels"`
	Caps            economy.Resources          `json:"caps"`
	Rates           economy.Resources          `json:"rates"`
	Charges         int                        `json:"charges"`
	NextChargeInMs  int64                      `json:"nextChargeInMs"`
	DayIndex        int                        `json:"dayIndex"`
	LastCollectedAt string                     `json:"lastCollectedAt"`
	UpdatedAt       string                     `json:"updatedAt"`
	Version         int64                      `json:"version"`
}

func NewView(catalog economy.Catalog, rules economy.Ruleset, base ports.PlayerBase, now time.Time) View {
	placements := Placements(catalog, base.Levels)
	gc := economy.AccrueCharges(rules, base.Mechanics.GlobalCharges, now.UnixMilli())
	return View{
		PlayerID:        base.PlayerID,
		Resources:       base.Resources,
		Levels:          CloneLevels(base.Levels),
		Caps:            economy.ComputeCaps(rules, placements, base.Mechanics.Perks),
		Rates:           economy.ComputePassiveRates(catalog, placements),
		Charges:         gc.Charges,
		NextChargeInMs:  economy.NextChargeInMs(rules, gc, now.UnixMilli()),
		DayIndex:        DayIndex(base, now),
		LastCollectedAt: base.LastCollectedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       base.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Version:         base.Version,
	}
}

// SortedLevels lists placed buildings in id order for stable event payloads.
func SortedLevels(levels map[economy.BuildingID]int) []string {
	out := make([]string, 0, len(levels))
	for id, tier := range levels {
		out = append(out, fmt.Sprintf("%s:%d", id, tier))
	}
	sort.Strings(out)
	return out
}
