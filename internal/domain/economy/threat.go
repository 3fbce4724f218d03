package economy

import "time"

// RandSource is satisfied by *math/rand.Rand.
type RandSource interface {
	Float64() float64
	Intn(n int) int
}

type ThreatModifiers struct {
	PassiveYieldMul   float64 `json:"passiveYieldMul"`
	PassiveAlphaMul   float64 `json:"passiveAlphaMul"`
	CashDrainPerSec   float64 `json:"cashDrainPerSec"`
	ActionCashCostMul float64 `json:"actionCashCostMul"`
	BuildTimeMul      float64 `json:"buildTimeMul"`
	ActionJamChance   float64 `json:"actionJamChance"`
}

func NeutralThreatModifiers() ThreatModifiers {
	return ThreatModifiers{PassiveYieldMul: 1, PassiveAlphaMul: 1, ActionCashCostMul: 1, BuildTimeMul: 1}
}

// GetThreatModifiers folds all active debuffs into one modifier set.
func GetThreatModifiers(rules Ruleset, mech MechanicsState, nowMs int64) ThreatModifiers {
	out := NeutralThreatModifiers()
	for _, d := range mech.ActiveDebuffs(nowMs) {
		rule, ok := rules.Threats[d.ID]
		if !ok {
			continue
		}
		out.PassiveYieldMul *= rule.YieldMul
		out.PassiveAlphaMul *= rule.AlphaMul
		out.CashDrainPerSec += rule.CashDrainPerSec
		if rule.ActionCashCostMul > 0 {
			out.ActionCashCostMul *= rule.ActionCashCostMul
		}
		if rule.BuildTimeMul > 0 {
			out.BuildTimeMul *= rule.BuildTimeMul
		}
		out.ActionJamChance += rule.JamChance
	}
	if mech.HasPerk(PerkThickSkin) {
		out.CashDrainPerSec *= 0.5
	}
	if mech.HasPerk(PerkLuckyCharms) {
		out.ActionJamChance *= 0.5
	}
	if out.PassiveYieldMul < rules.MultiplierFloor {
		out.PassiveYieldMul = rules.MultiplierFloor
	}
	if out.PassiveAlphaMul < rules.MultiplierFloor {
		out.PassiveAlphaMul = rules.MultiplierFloor
	}
	if out.ActionJamChance > rules.MaxJamChance {
		out.ActionJamChance = rules.MaxJamChance
	}
	return out
}

// TickModifiersFor combines threat penalties with the yield boost and yield mode.
func TickModifiersFor(rules Ruleset, mech MechanicsState, nowMs int64) TickModifiers {
	tm := GetThreatModifiers(rules, mech, nowMs)
	yieldMul := tm.PassiveYieldMul
	if mech.YieldBoostUntilMs > nowMs && mech.YieldBoostMul > 0 {
		yieldMul *= mech.YieldBoostMul
	}
	if mech.YieldMode == YieldModeAggro {
		yieldMul *= rules.AggroYieldMul
	}
	return TickModifiers{
		CashDrainPerSec: tm.CashDrainPerSec,
		YieldMul:        yieldMul,
		AlphaMul:        tm.PassiveAlphaMul,
	}
}

// SpawnChance is the per-tick probability of a natural spawn of the given kind.
func SpawnChance(rules Ruleset, kind DebuffKind, mech MechanicsState, placements Placements, nowMs int64, dayIndex int) float64 {
	rule, ok := rules.Threats[kind]
	if !ok || !rule.NaturalSpawn {
		return 0
	}
	p := rule.SpawnPerTick
	if dayIndex >= rules.ThreatLateDay {
		p = rule.SpawnPerTickLate
	}
	if placements.Has(BuildingRadarTower) {
		p *= rules.RadarSpawnMul
	}
	if mech.CoverageUntilMs > nowMs {
		p *= rules.CoverageSpawnMul
	}
	if mech.YieldMode == YieldModeAggro {
		p *= rules.AggroSpawnMul
	}
	return p
}

type ThreatTick struct {
	Spawned []DebuffKind
	Expired []DebuffKind
}

// TickThreats drops expired debuffs and rolls natural spawns. Kinds with
// NaturalSpawn=false never spawn here but still decay.
func TickThreats(rules Ruleset, mech MechanicsState, placements Placements, nowMs int64, dayIndex int, rng RandSource) (MechanicsState, ThreatTick) {
	out := mech.Clone()
	var tick ThreatTick
	kept := make([]Debuff, 0, len(out.Debuffs))
	for _, d := range out.Debuffs {
		if d.ExpiresAtMs <= nowMs {
			tick.Expired = append(tick.Expired, d.ID)
			continue
		}
		kept = append(kept, d)
	}
	out.Debuffs = kept

	for _, kind := range AllDebuffKinds {
		if len(out.Debuffs) >= rules.MaxConcurrentDebuffs {
			break
		}
		if out.HasDebuff(kind, nowMs) {
			continue
		}
		p := SpawnChance(rules, kind, out, placements, nowMs, dayIndex)
		if p <= 0 || rng == nil {
			continue
		}
		if rng.Float64() < p {
			out.Debuffs = append(out.Debuffs, Debuff{ID: kind, ExpiresAtMs: nowMs + rules.Threats[kind].Duration.Milliseconds()})
			tick.Spawned = append(tick.Spawned, kind)
		}
	}
	return out, tick
}

// TriggerDebuff activates any kind, including ones excluded from natural spawning.
// An already active kind has its timer refreshed.
func TriggerDebuff(rules Ruleset, mech MechanicsState, kind DebuffKind, nowMs int64) (MechanicsState, bool) {
	rule, ok := rules.Threats[kind]
	if !ok {
		return mech, false
	}
	out := mech.Clone()
	expires := nowMs + rule.Duration.Milliseconds()
	for i, d := range out.Debuffs {
		if d.ID == kind && d.ExpiresAtMs > nowMs {
			out.Debuffs[i].ExpiresAtMs = expires
			return out, true
		}
	}
	if len(out.ActiveDebuffs(nowMs)) >= rules.MaxConcurrentDebuffs {
		return mech, false
	}
	out.removeDebuff(kind)
	out.Debuffs = append(out.Debuffs, Debuff{ID: kind, ExpiresAtMs: expires})
	return out, true
}

// ClearDebuff removes the kind outright.
func ClearDebuff(mech MechanicsState, kind DebuffKind) MechanicsState {
	out := mech.Clone()
	out.removeDebuff(kind)
	return out
}

// cleanse removes the longest-lived debuff when two or more are active; otherwise it
// shortens the single active debuff, removing it if that expires it.
func cleanse(rules Ruleset, mech *MechanicsState, nowMs int64) {
	active := mech.ActiveDebuffs(nowMs)
	if len(active) == 0 {
		return
	}
	if len(active) >= 2 {
		longest := active[0]
		for _, d := range active[1:] {
			if d.ExpiresAtMs > longest.ExpiresAtMs {
				longest = d
			}
		}
		mech.removeDebuff(longest.ID)
		return
	}
	target := active[0]
	reduced := target.ExpiresAtMs - rules.CleanseReduce.Milliseconds()
	if reduced <= nowMs {
		mech.removeDebuff(target.ID)
		return
	}
	for i, d := range mech.Debuffs {
		if d.ID == target.ID {
			mech.Debuffs[i].ExpiresAtMs = reduced
		}
	}
}

func DebuffRemaining(d Debuff, nowMs int64) time.Duration {
	left := d.ExpiresAtMs - nowMs
	if left < 0 {
		return 0
	}
	return time.Duration(left) * time.Millisecond
}
