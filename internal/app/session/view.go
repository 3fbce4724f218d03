package session

import (
	"time"

	"reefbase/internal/domain/economy"
)

type JobView struct {
	economy.BuildJob
	Active      bool  `json:"active"`
	RemainingMs int64 `json:"remainingMs"`
}

// View is a read-only render model. It shares no memory with the session.
type View struct {
	NowMs          int64                   `json:"nowMs"`
	DayIndex       int                     `json:"dayIndex"`
	Resources      economy.Resources       `json:"resources"`
	Caps           economy.Resources       `json:"caps"`
	Rates          economy.Resources       `json:"rates"`
	Cells          []economy.Cell          `json:"cells"`
	Placements     economy.Placements      `json:"placements"`
	Queue          []JobView               `json:"queue"`
	Actions        []economy.ActionStatus  `json:"actions"`
	Charges        int                     `json:"charges"`
	NextChargeInMs int64                   `json:"nextChargeInMs"`
	YieldMode      economy.YieldMode       `json:"yieldMode"`
	Perks          []economy.Perk          `json:"perks"`
	Debuffs        []economy.Debuff        `json:"debuffs"`
	Modifiers      economy.ThreatModifiers `json:"modifiers"`
	Swarms         []economy.SwarmInstance `json:"swarms"`
	Impacts        []economy.Impact        `json:"impacts"`
}

func (s *Session) View(now time.Time) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	mech := s.snap.MechanicsState
	gc := economy.AccrueCharges(s.cfg.Rules, mech.GlobalCharges, nowMs)
	dayIndex := s.dayIndex(nowMs)

	v := View{
		NowMs:          nowMs,
		DayIndex:       dayIndex,
		Resources:      s.res,
		Caps:           s.ledger.Caps,
		Rates:          s.ledger.Rates,
		Cells:          append([]economy.Cell(nil), s.snap.Cells...),
		Placements:     s.snap.Placements.Clone(),
		Charges:        gc.Charges,
		NextChargeInMs: economy.NextChargeInMs(s.cfg.Rules, gc, nowMs),
		YieldMode:      mech.YieldMode,
		Perks:          append([]economy.Perk(nil), mech.Perks...),
		Debuffs:        mech.ActiveDebuffs(nowMs),
		Modifiers:      economy.GetThreatModifiers(s.cfg.Rules, mech, nowMs),
		Impacts:        append([]economy.Impact(nil), s.impacts...),
	}

	q := s.snap.BuildQueue
	for i, job := range q.Jobs() {
		v.Queue = append(v.Queue, JobView{
			BuildJob:    job,
			Active:      i == 0 && q.Active != nil,
			RemainingMs: job.RemainingMs(nowMs),
		})
	}

	for _, def := range s.cfg.Catalog.Buildings() {
		tier := s.snap.Placements.TierOf(def.ID)
		if tier <= 0 {
			continue
		}
		for _, tpl := range def.Actions {
			st, ok := s.engine.ActionStatus(economy.ActionKey{Building: def.ID, Action: tpl.ID}, tier, nowMs, dayIndex, s.res, mech)
			if ok {
				v.Actions = append(v.Actions, st)
			}
		}
	}

	for _, kind := range economy.SortedKinds(s.swarms) {
		sw := s.swarms[kind]
		sw.Units = append([]economy.SwarmUnit(nil), sw.Units...)
		sw.Impacts = append([]economy.Impact(nil), sw.Impacts...)
		v.Swarms = append(v.Swarms, sw)
	}
	return v
}
