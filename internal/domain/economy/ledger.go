package economy

import (
	"strings"
	"time"
)

// Ledger carries the caps and passive rates derived from one base's placements.
// Each player session owns its own Ledger.
type Ledger struct {
	Caps  Resources `json:"caps"`
	Rates Resources `json:"rates"`

	catalog Catalog
	rules   Ruleset
}

type TickModifiers struct {
	CashDrainPerSec float64
	YieldMul        float64
	AlphaMul        float64
}

func NeutralTickModifiers() TickModifiers {
	return TickModifiers{YieldMul: 1, AlphaMul: 1}
}

func NewLedger(catalog Catalog, rules Ruleset, placements Placements, perks []Perk) Ledger {
	l := Ledger{catalog: catalog, rules: rules}
	l.Recompute(placements, perks)
	return l
}

// Recompute refreshes caps and rates; call it whenever placements or perks change.
func (l *Ledger) Recompute(placements Placements, perks []Perk) {
	l.Caps = ComputeCaps(l.rules, placements, perks)
	l.Rates = ComputePassiveRates(l.catalog, placements)
}

func ComputeCaps(rules Ruleset, placements Placements, perks []Perk) Resources {
	caps := rules.BaseCaps
	for _, pl := range placements {
		caps = caps.Add(capBonus(pl))
	}
	for _, p := range perks {
		if p == PerkDeepStorage {
			caps = caps.Scale(1.1)
			break
		}
	}
	return caps
}

var commandHubCaps = map[int]Resources{
	2: {Cash: 5000, Yield: 500, Alpha: 100, Tickets: 25, Mon: 10, Faith: 20},
	3: {Cash: 15000, Yield: 1500, Alpha: 300, Tickets: 75, Mon: 30, Faith: 60},
	4: {Cash: 40000, Yield: 4000, Alpha: 800, Tickets: 200, Mon: 80, Faith: 150},
}

func capBonus(pl Placement) Resources {
	t := float64(clampTier(pl.Tier))
	switch pl.BuildingID {
	case BuildingCommandHub:
		return commandHubCaps[clampTier(pl.Tier)]
	case BuildingStorageSilo:
		return Resources{Cash: 2000 * t, Yield: 200 * t, Alpha: 20 * t}
	case BuildingMonVault:
		return Resources{Mon: 10 * t}
	case BuildingShrine:
		return Resources{Faith: 10 * t}
	case BuildingTicketBooth:
		return Resources{Tickets: 10 * t}
	default:
		return Resources{}
	}
}

func ComputePassiveRates(catalog Catalog, placements Placements) Resources {
	var rates Resources
	for _, pl := range placements {
		def, ok := catalog.Building(pl.BuildingID)
		if !ok || def.PassiveRate.IsZero() {
			continue
		}
		rates = rates.Add(def.PassiveRate.Scale(linear().Multiplier(pl.Tier)))
	}
	return rates
}

func (l Ledger) Clamp(res Resources) Resources {
	res = res.ClampTo(l.Caps)
	res.Tickets = float64(int64(res.Tickets))
	return res
}

// Tick accrues cash, yield and alpha for the elapsed time. Tickets, mon and faith only
// move through discrete actions.
func (l Ledger) Tick(res Resources, elapsed time.Duration, mods TickModifiers) Resources {
	if elapsed <= 0 {
		return l.Clamp(res)
	}
	secs := elapsed.Seconds()
	yieldMul, alphaMul := mods.YieldMul, mods.AlphaMul
	if yieldMul < 0 {
		yieldMul = 0
	}
	if alphaMul < 0 {
		alphaMul = 0
	}
	res.Cash += l.Rates.Cash*secs - mods.CashDrainPerSec*secs
	if res.Cash < 0 {
		res.Cash = 0
	}
	res.Yield += l.Rates.Yield * secs * yieldMul
	res.Alpha += l.Rates.Alpha * secs * alphaMul
	return l.Clamp(res)
}

type Affordability struct {
	OK       bool
	Blocking ResourceKind
	Reason   string
}

const ReasonMonLocked = "MON_LOCKED"

func notEnoughReason(k ResourceKind) string {
	return "NOT_ENOUGH_" + strings.ToUpper(k.String())
}

// CanAfford rejects any mon cost before the unlock day regardless of balance.
func CanAfford(rules Ruleset, res, cost Resources, dayIndex int) Affordability {
	if cost.Mon > 0 && dayIndex < rules.MonUnlockDay {
		return Affordability{Blocking: Mon, Reason: ReasonMonLocked}
	}
	for _, k := range AllResources {
		if c := cost.Get(k); c > 0 && res.Get(k)+1e-9 < c {
			return Affordability{Blocking: k, Reason: notEnoughReason(k)}
		}
	}
	return Affordability{OK: true}
}

func Spend(rules Ruleset, res, cost Resources, dayIndex int) (Resources, Affordability) {
	a := CanAfford(rules, res, cost, dayIndex)
	if !a.OK {
		return res, a
	}
	out := res.Sub(cost)
	for _, k := range AllResources {
		if out.Get(k) < 0 {
			out.Set(k, 0)
		}
	}
	return out, a
}
