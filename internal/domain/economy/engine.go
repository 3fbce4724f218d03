package economy

import (
	"fmt"
	"math"
)

const (
	ReasonActionNotFound = "ACTION_NOT_FOUND"
	ReasonNoCharges      = "NO_CHARGES"
	ReasonCooldown       = "COOLDOWN"
	ReasonJammed         = "JAMMED"
	ReasonDailyCap       = "DAILY_CAP"
	ReasonNoDebuff       = "NO_DEBUFF"
	ReasonBoostFull      = "BOOST_FULL"
	ReasonNoBoostCharges = "NO_BOOST_CHARGES"
	ReasonAllPerksOwned  = "ALL_PERKS_OWNED"
	ReasonNotPlaced      = "BUILDING_NOT_PLACED"
)

const maxTicketCarry = 0.999

type ActionRequest struct {
	NowMs     int64
	DayIndex  int
	Key       ActionKey
	Tier      int
	Resources Resources
	Mechanics MechanicsState
	Caps      Resources
}

type ActionResult struct {
	OK        bool
	Resources Resources
	Mechanics MechanicsState
	Reason    string
	Message   string

	RemainingMs int64
	Charges     int
	Blocking    string

	Cost            Resources
	Reward          Resources
	TicketsCredited int
}

// Engine validates and executes discrete building actions. It never mutates the
// request; results carry fresh copies.
type Engine struct {
	Catalog Catalog
	Rules   Ruleset
	Rand    RandSource
}

func NewEngine(catalog Catalog, rules Ruleset, rng RandSource) Engine {
	return Engine{Catalog: catalog, Rules: rules, Rand: rng}
}

func fail(res Resources, mech MechanicsState, reason, msg string) ActionResult {
	return ActionResult{Resources: res, Mechanics: mech, Reason: reason, Message: msg}
}

func (e Engine) TryUseAction(req ActionRequest) ActionResult {
	tpl, ok := e.Catalog.Action(req.Key)
	if !ok {
		return fail(req.Resources, req.Mechanics, ReasonActionNotFound, fmt.Sprintf("unknown action %s", req.Key))
	}
	now := req.NowMs
	res := req.Resources
	mech := req.Mechanics.Clone()
	caps := req.Caps
	if caps.IsZero() {
		caps = e.Rules.BaseCaps
	}

	// The charge is spent up front and stays spent if a later step fails.
	if e.Rules.IsChargePool(req.Key) {
		mech.GlobalCharges = AccrueCharges(e.Rules, mech.GlobalCharges, now)
		if mech.GlobalCharges.Charges < 1 {
			r := fail(res, mech, ReasonNoCharges, "no harvest charges available")
			r.RemainingMs = NextChargeInMs(e.Rules, mech.GlobalCharges, now)
			return r
		}
		mech.GlobalCharges.Charges--
	}

	if left := CooldownRemainingMs(tpl, mech, req.Key, now); left > 0 {
		r := fail(res, mech, ReasonCooldown, fmt.Sprintf("%s is cooling down", req.Key))
		r.RemainingMs = left
		r.Charges = mech.GlobalCharges.Charges
		return r
	}

	mods := GetThreatModifiers(e.Rules, mech, now)
	if mods.ActionJamChance > 0 && e.Rand != nil && e.Rand.Float64() < mods.ActionJamChance {
		if res.Alpha >= e.Rules.JamAlphaPenalty {
			res.Alpha -= e.Rules.JamAlphaPenalty
		}
		mech.LastActionMs[req.Key] = now
		r := fail(res, mech, ReasonJammed, "action jammed by bots")
		r.RemainingMs = tpl.Cooldown.Milliseconds()
		return r
	}

	mult := tpl.Scaling.Multiplier(req.Tier)
	cost := tpl.Cost.Scale(mult)
	reward := tpl.Reward.Scale(mult)
	cost.Cash *= mods.ActionCashCostMul

	if e.Rules.IsZeroPayout(req.Key) {
		reward = Resources{}
	}

	dayIdx := e.Rules.DailyIndex(now)
	uses := 0
	if tpl.DailyCap > 0 {
		if mech.RaidDaily.DayIndex == dayIdx {
			uses = mech.RaidDaily.Counts[req.Key]
		}
		if uses >= tpl.DailyCap {
			return fail(req.Resources, mech, ReasonDailyCap, fmt.Sprintf("daily limit of %d reached", tpl.DailyCap))
		}
		reward = reward.Scale(e.Rules.DailyMultiplier(uses))
	}

	switch req.Key.Action {
	case ActionCleanse:
		if len(mech.ActiveDebuffs(now)) == 0 {
			return fail(res, mech, ReasonNoDebuff, "nothing to cleanse")
		}
	case ActionIgnite:
		if mech.BoostCharges >= e.Rules.MaxBoostCharges {
			return fail(res, mech, ReasonBoostFull, "reactor is fully charged")
		}
	case ActionDischarge:
		if mech.BoostCharges < 1 {
			return fail(res, mech, ReasonNoBoostCharges, "reactor has no banked charge")
		}
		reward = reward.Scale(float64(mech.BoostCharges))
	case ActionLearn:
		if nextPerk(e.Rules, mech) == "" {
			return fail(res, mech, ReasonAllPerksOwned, "every perk already learned")
		}
	}

	if a := CanAfford(e.Rules, res, cost, req.DayIndex); !a.OK {
		r := fail(res, mech, a.Reason, fmt.Sprintf("insufficient %s", a.Blocking))
		r.Blocking = a.Blocking.String()
		return r
	}

	res = res.Sub(cost)
	ticketDelta := reward.Tickets
	reward.Tickets = 0
	res = res.Add(reward)
	whole, carry := splitTickets(mech.TicketFractionCarry, ticketDelta)
	res.Tickets += float64(whole)
	mech.TicketFractionCarry = carry
	res = res.ClampTo(caps)
	res.Tickets = math.Floor(res.Tickets)

	e.applySideEffect(req.Key, &mech, now)
	mech.LastActionMs[req.Key] = now
	if tpl.DailyCap > 0 {
		if mech.RaidDaily.DayIndex != dayIdx || mech.RaidDaily.Counts == nil {
			mech.RaidDaily = DailyUsage{DayIndex: dayIdx, Counts: map[ActionKey]int{}}
		}
		mech.RaidDaily.Counts[req.Key] = uses + 1
	}

	reward.Tickets = ticketDelta
	return ActionResult{
		OK:              true,
		Resources:       res,
		Mechanics:       mech,
		Cost:            cost,
		Reward:          reward,
		TicketsCredited: whole,
		Charges:         mech.GlobalCharges.Charges,
	}
}

func (e Engine) applySideEffect(key ActionKey, mech *MechanicsState, now int64) {
	switch key.Action {
	case ActionToggleMode:
		if mech.YieldMode == YieldModeAggro {
			mech.YieldMode = YieldModeSafe
		} else {
			mech.YieldMode = YieldModeAggro
		}
	case ActionCleanse:
		cleanse(e.Rules, mech, now)
	case ActionBuyCoverage:
		mech.CoverageUntilMs = maxInt64(now, mech.CoverageUntilMs) + e.Rules.CoverageExtend.Milliseconds()
	case ActionBless:
		mech.YieldBoostUntilMs = maxInt64(now, mech.YieldBoostUntilMs) + e.Rules.BlessDuration.Milliseconds()
		mech.YieldBoostMul = e.Rules.BlessYieldMul
	case ActionLearn:
		if p := nextPerk(e.Rules, *mech); p != "" {
			mech.Perks = append(mech.Perks, p)
		}
	case ActionIgnite:
		mech.BoostCharges++
	case ActionDischarge:
		mech.BoostCharges = 0
	}
}

func nextPerk(rules Ruleset, mech MechanicsState) Perk {
	for _, p := range rules.PerkOrder {
		if !mech.HasPerk(p) {
			return p
		}
	}
	return ""
}

// splitTickets adds delta to the carried fraction and returns the whole tickets to
// credit and the new carry.
func splitTickets(carry, delta float64) (int, float64) {
	total := carry + delta
	if total < 0 {
		return 0, 0
	}
	whole := math.Floor(total + 1e-9)
	rest := total - whole
	if rest < 0 {
		rest = 0
	}
	if rest > maxTicketCarry {
		rest = maxTicketCarry
	}
	return int(whole), rest
}

func CooldownRemainingMs(tpl ActionTemplate, mech MechanicsState, key ActionKey, nowMs int64) int64 {
	last, ok := mech.LastActionMs[key]
	if !ok {
		return 0
	}
	left := last + tpl.Cooldown.Milliseconds() - nowMs
	if left < 0 {
		return 0
	}
	return left
}

// AccrueCharges grants one charge per whole elapsed interval. The accrual clock only
// advances by whole intervals so partial progress is never lost, and it is pinned to
// now while the pool is full.
func AccrueCharges(rules Ruleset, gc GlobalCharges, nowMs int64) GlobalCharges {
	limit := rules.MaxCharges
	interval := rules.ChargeInterval.Milliseconds()
	if gc.LastAccrueAtMs == 0 {
		return GlobalCharges{LastAccrueAtMs: nowMs, Charges: limit}
	}
	if gc.Charges < 0 {
		gc.Charges = 0
	}
	if gc.Charges >= limit {
		return GlobalCharges{LastAccrueAtMs: nowMs, Charges: limit}
	}
	if interval <= 0 || nowMs <= gc.LastAccrueAtMs {
		return gc
	}
	steps := (nowMs - gc.LastAccrueAtMs) / interval
	if steps <= 0 {
		return gc
	}
	gc.LastAccrueAtMs += steps * interval
	if int64(gc.Charges)+steps >= int64(limit) {
		return GlobalCharges{LastAccrueAtMs: nowMs, Charges: limit}
	}
	gc.Charges += int(steps)
	return gc
}

func NextChargeInMs(rules Ruleset, gc GlobalCharges, nowMs int64) int64 {
	if gc.Charges >= rules.MaxCharges {
		return 0
	}
	left := gc.LastAccrueAtMs + rules.ChargeInterval.Milliseconds() - nowMs
	if left < 0 {
		return 0
	}
	return left
}

type ActionStatus struct {
	Key                 ActionKey `json:"key"`
	Ready               bool      `json:"ready"`
	CooldownRemainingMs int64     `json:"cooldownRemainingMs"`
	UsesChargePool      bool      `json:"usesChargePool"`
	Charges             int       `json:"charges"`
	NextChargeInMs      int64     `json:"nextChargeInMs"`
	Affordable          bool      `json:"affordable"`
	Blocking            string    `json:"blocking,omitempty"`
	Cost                Resources `json:"cost"`
	Reward              Resources `json:"reward"`
	DailyUsesLeft       int       `json:"dailyUsesLeft"`
}

// ActionStatus previews an action for rendering without rolling the jam check.
func (e Engine) ActionStatus(key ActionKey, tier int, nowMs int64, dayIndex int, res Resources, mech MechanicsState) (ActionStatus, bool) {
	tpl, ok := e.Catalog.Action(key)
	if !ok {
		return ActionStatus{}, false
	}
	mods := GetThreatModifiers(e.Rules, mech, nowMs)
	mult := tpl.Scaling.Multiplier(tier)
	cost := tpl.Cost.Scale(mult)
	cost.Cash *= mods.ActionCashCostMul
	reward := tpl.Reward.Scale(mult)
	if e.Rules.IsZeroPayout(key) {
		reward = Resources{}
	}
	st := ActionStatus{
		Key:                 key,
		CooldownRemainingMs: CooldownRemainingMs(tpl, mech, key, nowMs),
		UsesChargePool:      e.Rules.IsChargePool(key),
		Cost:                cost,
		Reward:              reward,
		DailyUsesLeft:       -1,
	}
	if st.UsesChargePool {
		gc := AccrueCharges(e.Rules, mech.GlobalCharges, nowMs)
		st.Charges = gc.Charges
		st.NextChargeInMs = NextChargeInMs(e.Rules, gc, nowMs)
	}
	if tpl.DailyCap > 0 {
		uses := 0
		if mech.RaidDaily.DayIndex == e.Rules.DailyIndex(nowMs) {
			uses = mech.RaidDaily.Counts[key]
		}
		st.DailyUsesLeft = tpl.DailyCap - uses
		if st.DailyUsesLeft < 0 {
			st.DailyUsesLeft = 0
		}
		st.Reward = st.Reward.Scale(e.Rules.DailyMultiplier(uses))
	}
	a := CanAfford(e.Rules, res, cost, dayIndex)
	st.Affordable = a.OK
	if !a.OK {
		st.Blocking = a.Blocking.String()
	}
	st.Ready = st.CooldownRemainingMs == 0 && st.Affordable &&
		(!st.UsesChargePool || st.Charges > 0) && st.DailyUsesLeft != 0
	return st, true
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
