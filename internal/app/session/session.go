package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"

	"github.com/google/uuid"
)

var (
	ErrUnknownBuilding = errors.New("unknown building")
	ErrUnknownCell     = errors.New("unknown cell")
	ErrCellOccupied    = errors.New("cell is occupied")
	ErrAlreadyPlaced   = errors.New("building already placed")
	ErrNotPlaced       = errors.New("no building on cell")
	ErrMaxTier         = errors.New("building is at max tier")
	ErrJobPending      = errors.New("a job already targets this cell")
	ErrQueueFull       = errors.New("build queue is full")
)

// AffordabilityError names the first resource the player is short of.
type AffordabilityError struct {
	Reason   string
	Blocking string
	Cost     economy.Resources
}

func (e *AffordabilityError) Error() string {
	return fmt.Sprintf("%s: need %+v", e.Reason, e.Cost)
}

type Config struct {
	Catalog    economy.Catalog
	Rules      economy.Ruleset
	Rand       economy.RandSource
	QueueLimit int
	NewJobID   func() string
	// OnMutate fires after a command or tick changed persisted state. It runs
	// without the session lock held.
	OnMutate func()
}

// Session owns one base. Ticks and commands are serialised by mu, which gives
// the same ordering guarantees as a single-threaded event loop.
type Session struct {
	mu sync.Mutex

	cfg    Config
	engine economy.Engine

	snap       economy.BaseSnapshot
	res        economy.Resources
	ledger     economy.Ledger
	swarms     map[economy.DebuffKind]economy.SwarmInstance
	impacts    []economy.Impact
	lastTickMs int64
}

const maxRecentImpacts = 32

func New(cfg Config, snap economy.BaseSnapshot, now time.Time) *Session {
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = economy.DefaultQueueLimit
	}
	if cfg.NewJobID == nil {
		cfg.NewJobID = uuid.NewString
	}
	s := &Session{
		cfg:    cfg,
		engine: economy.NewEngine(cfg.Catalog, cfg.Rules, cfg.Rand),
		swarms: map[economy.DebuffKind]economy.SwarmInstance{},
	}
	s.load(snap, now.UnixMilli())
	return s
}

func (s *Session) load(snap economy.BaseSnapshot, nowMs int64) {
	snap = snap.Normalize()
	if snap.CreatedAtMs == 0 {
		snap.CreatedAtMs = nowMs
	}
	if snap.Resources != nil {
		s.res = *snap.Resources
	}
	snap.Resources = nil
	s.snap = snap
	s.ledger = economy.NewLedger(s.cfg.Catalog, s.cfg.Rules, snap.Placements, snap.MechanicsState.Perks)
	s.res = s.ledger.Clamp(s.res)
	s.swarms = map[economy.DebuffKind]economy.SwarmInstance{}
	s.impacts = nil
	s.lastTickMs = nowMs
}

func (s *Session) notify(changed bool) {
	if changed && s.cfg.OnMutate != nil {
		s.cfg.OnMutate()
	}
}

func (s *Session) dayIndex(nowMs int64) int {
	return economy.GameDay(s.snap.CreatedAtMs, nowMs)
}

type TickReport struct {
	Spawned   []economy.DebuffKind
	Expired   []economy.DebuffKind
	Completed []economy.BuildJob
	Impacts   []economy.Impact
	// Accrued is set when passive income or drain moved any balance.
	Accrued bool
}

func (r TickReport) changed() bool {
	return r.Accrued || len(r.Spawned) > 0 || len(r.Expired) > 0 || len(r.Completed) > 0
}

// Tick advances threats, swarms, the ledger and the build queue, in that order.
func (s *Session) Tick(now time.Time) TickReport {
	s.mu.Lock()
	report := s.tick(now.UnixMilli())
	s.mu.Unlock()
	s.notify(report.changed())
	return report
}

func (s *Session) tick(nowMs int64) TickReport {
	var report TickReport
	rules := s.cfg.Rules

	mech, tt := economy.TickThreats(rules, s.snap.MechanicsState, s.snap.Placements, nowMs, s.dayIndex(nowMs), s.cfg.Rand)
	s.snap.MechanicsState = mech
	report.Spawned, report.Expired = tt.Spawned, tt.Expired

	s.swarms = economy.SyncSwarms(rules, s.swarms, mech, nowMs, s.cfg.Rand)
	for _, kind := range economy.SortedKinds(s.swarms) {
		sw := s.swarms[kind]
		report.Impacts = append(report.Impacts, sw.Update(rules, s.snap.Cells, s.snap.Placements, nowMs, s.cfg.Rand)...)
		s.swarms[kind] = sw
	}
	s.recordImpacts(report.Impacts)

	if elapsed := nowMs - s.lastTickMs; elapsed > 0 {
		mods := economy.TickModifiersFor(rules, mech, nowMs)
		before := s.res
		s.res = s.ledger.Tick(s.res, time.Duration(elapsed)*time.Millisecond, mods)
		report.Accrued = s.res != before
	}
	s.lastTickMs = nowMs

	q, done := economy.TickQueue(s.snap.BuildQueue, nowMs)
	s.snap.BuildQueue = q
	if len(done) > 0 {
		for _, job := range done {
			s.snap.Placements = economy.ApplyCompletedJob(s.snap.Placements, job)
			if job.Type == economy.JobBuild {
				s.snap.BuildingVisuals[job.CellID] = string(job.BuildingID)
			}
		}
		s.refreshLedger()
		report.Completed = done
	}
	return report
}

func (s *Session) recordImpacts(impacts []economy.Impact) {
	if len(impacts) == 0 {
		return
	}
	s.impacts = append(s.impacts, impacts...)
	if n := len(s.impacts); n > maxRecentImpacts {
		s.impacts = append([]economy.Impact(nil), s.impacts[n-maxRecentImpacts:]...)
	}
}

func (s *Session) refreshLedger() {
	s.ledger.Recompute(s.snap.Placements, s.snap.MechanicsState.Perks)
	s.res = s.ledger.Clamp(s.res)
}

func (s *Session) cellExists(cell economy.CellID) bool {
	for _, c := range s.snap.Cells {
		if c.ID == cell {
			return true
		}
	}
	return false
}

// EnqueueBuild charges the tier-1 cost and queues construction on an empty cell.
func (s *Session) EnqueueBuild(cell economy.CellID, building economy.BuildingID, now time.Time) (economy.BuildJob, error) {
	s.mu.Lock()
	job, err := s.enqueueBuild(cell, building, now.UnixMilli())
	s.mu.Unlock()
	s.notify(err == nil)
	return job, err
}

func (s *Session) enqueueBuild(cell economy.CellID, building economy.BuildingID, nowMs int64) (economy.BuildJob, error) {
	def, ok := s.cfg.Catalog.Building(building)
	if !ok {
		return economy.BuildJob{}, ErrUnknownBuilding
	}
	if !s.cellExists(cell) {
		return economy.BuildJob{}, ErrUnknownCell
	}
	if _, taken := s.snap.Placements[cell]; taken {
		return economy.BuildJob{}, ErrCellOccupied
	}
	if s.snap.BuildQueue.HasJobForCell(cell) {
		return economy.BuildJob{}, ErrJobPending
	}
	if s.snap.Placements.Has(building) || s.snap.BuildQueue.HasJobForBuilding(building) {
		return economy.BuildJob{}, ErrAlreadyPlaced
	}
	return s.enqueue(economy.BuildJob{
		CellID:     cell,
		BuildingID: def.ID,
		FromTier:   0,
		ToTier:     1,
		Type:       economy.JobBuild,
	}, def, nowMs)
}

// EnqueueUpgrade charges the next tier's cost and queues the upgrade.
func (s *Session) EnqueueUpgrade(cell economy.CellID, now time.Time) (economy.BuildJob, error) {
	s.mu.Lock()
	job, err := s.enqueueUpgrade(cell, now.UnixMilli())
	s.mu.Unlock()
	s.notify(err == nil)
	return job, err
}

func (s *Session) enqueueUpgrade(cell economy.CellID, nowMs int64) (economy.BuildJob, error) {
	pl, ok := s.snap.Placements[cell]
	if !ok {
		return economy.BuildJob{}, ErrNotPlaced
	}
	if pl.Tier >= economy.MaxTier {
		return economy.BuildJob{}, ErrMaxTier
	}
	if s.snap.BuildQueue.HasJobForCell(cell) {
		return economy.BuildJob{}, ErrJobPending
	}
	def, ok := s.cfg.Catalog.Building(pl.BuildingID)
	if !ok {
		return economy.BuildJob{}, ErrUnknownBuilding
	}
	return s.enqueue(economy.BuildJob{
		CellID:     cell,
		BuildingID: def.ID,
		FromTier:   pl.Tier,
		ToTier:     pl.Tier + 1,
		Type:       economy.JobUpgrade,
	}, def, nowMs)
}

func (s *Session) enqueue(job economy.BuildJob, def economy.BuildingDef, nowMs int64) (economy.BuildJob, error) {
	if !s.snap.BuildQueue.CanEnqueue(s.cfg.QueueLimit) {
		return economy.BuildJob{}, ErrQueueFull
	}
	next := def.Tier(job.ToTier)
	remaining, afford := economy.Spend(s.cfg.Rules, s.res, next.Cost, s.dayIndex(nowMs))
	if !afford.OK {
		return economy.BuildJob{}, &AffordabilityError{Reason: afford.Reason, Blocking: afford.Blocking.String(), Cost: next.Cost}
	}
	mods := economy.GetThreatModifiers(s.cfg.Rules, s.snap.MechanicsState, nowMs)
	job.ID = s.cfg.NewJobID()
	job.DurationMs = economy.BuildDuration(next.Duration, mods.BuildTimeMul, s.snap.MechanicsState.Perks).Milliseconds()
	job.CostPaid = true

	q, ok := economy.EnqueueJob(s.snap.BuildQueue, job, nowMs, s.cfg.QueueLimit)
	if !ok {
		return economy.BuildJob{}, ErrQueueFull
	}
	s.snap.BuildQueue = q
	s.res = remaining
	for _, j := range q.Jobs() {
		if j.ID == job.ID {
			return j, nil
		}
	}
	return job, nil
}

// UseAction runs the action engine against local state. Failed results may
// still change state (a spent charge, a jam penalty), which is kept.
func (s *Session) UseAction(key economy.ActionKey, now time.Time) economy.ActionResult {
	s.mu.Lock()
	tier := s.snap.Placements.TierOf(key.Building)
	if tier <= 0 {
		r := economy.ActionResult{
			Resources: s.res,
			Mechanics: s.snap.MechanicsState.Clone(),
			Reason:    economy.ReasonNotPlaced,
			Message:   fmt.Sprintf("%s is not placed", key.Building),
		}
		s.mu.Unlock()
		return r
	}
	nowMs := now.UnixMilli()
	r := s.engine.TryUseAction(economy.ActionRequest{
		NowMs:     nowMs,
		DayIndex:  s.dayIndex(nowMs),
		Key:       key,
		Tier:      tier,
		Resources: s.res,
		Mechanics: s.snap.MechanicsState,
		Caps:      s.ledger.Caps,
	})
	perksBefore := len(s.snap.MechanicsState.Perks)
	s.res = r.Resources
	s.snap.MechanicsState = r.Mechanics
	if len(r.Mechanics.Perks) != perksBefore {
		s.refreshLedger()
	}
	changed := r.OK || r.Reason == economy.ReasonJammed || r.Reason == economy.ReasonCooldown
	s.mu.Unlock()
	s.notify(changed)
	return r
}

// RemovePlacement demolishes a cell without refund and drops any job on it.
func (s *Session) RemovePlacement(cell economy.CellID, now time.Time) error {
	s.mu.Lock()
	_, placed := s.snap.Placements[cell]
	pending := s.snap.BuildQueue.HasJobForCell(cell)
	if !placed && !pending {
		s.mu.Unlock()
		return ErrNotPlaced
	}
	placements := s.snap.Placements.Clone()
	delete(placements, cell)
	s.snap.Placements = placements
	delete(s.snap.BuildingVisuals, cell)
	s.snap.BuildQueue = economy.RemoveCellJobs(s.snap.BuildQueue, cell, now.UnixMilli())
	s.refreshLedger()
	s.mu.Unlock()
	s.notify(true)
	return nil
}

type WipeReport struct {
	Hits    int                  `json:"hits"`
	Killed  int                  `json:"killed"`
	Cleared []economy.DebuffKind `json:"cleared"`
}

// WipeSwarmAt applies a click at (x, y) to every swarm. A swarm wiped out before
// its debuff expires clears the debuff and pays the perfect-clear bonus.
func (s *Session) WipeSwarmAt(x, y float64, now time.Time) WipeReport {
	s.mu.Lock()
	nowMs := now.UnixMilli()
	var report WipeReport
	for _, kind := range economy.SortedKinds(s.swarms) {
		sw := s.swarms[kind]
		r := sw.WipeAt(s.cfg.Rules, x, y)
		report.Hits += r.Hits
		report.Killed += r.Killed
		if !sw.Cleared() {
			s.swarms[kind] = sw
			continue
		}
		delete(s.swarms, kind)
		mech, res, ok := economy.PerfectClear(s.cfg.Rules, s.snap.MechanicsState, s.res, s.ledger.Caps, kind, nowMs)
		if ok {
			s.snap.MechanicsState, s.res = mech, res
			report.Cleared = append(report.Cleared, kind)
		}
	}
	s.mu.Unlock()
	s.notify(len(report.Cleared) > 0)
	return report
}

// TriggerDebuff starts a debuff by hand, including kinds that never spawn naturally.
func (s *Session) TriggerDebuff(kind economy.DebuffKind, now time.Time) bool {
	s.mu.Lock()
	mech, ok := economy.TriggerDebuff(s.cfg.Rules, s.snap.MechanicsState, kind, now.UnixMilli())
	if ok {
		s.snap.MechanicsState = mech
	}
	s.mu.Unlock()
	s.notify(ok)
	return ok
}

// Snapshot returns the persistable blob, resources included.
func (s *Session) Snapshot(now time.Time) economy.BaseSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(now.UnixMilli())
}

func (s *Session) snapshot(nowMs int64) economy.BaseSnapshot {
	out := s.snap
	out.Cells = append([]economy.Cell(nil), s.snap.Cells...)
	out.Placements = s.snap.Placements.Clone()
	out.BuildingVisuals = make(map[economy.CellID]string, len(s.snap.BuildingVisuals))
	for k, v := range s.snap.BuildingVisuals {
		out.BuildingVisuals[k] = v
	}
	out.BuildQueue = cloneQueue(s.snap.BuildQueue)
	out.MechanicsState = s.snap.MechanicsState.Clone()
	res := s.res
	out.Resources = &res
	out.SavedAtMs = nowMs
	return out
}

func cloneQueue(q economy.Queue) economy.Queue {
	out := economy.Queue{Queued: make([]economy.BuildJob, 0, len(q.Queued))}
	if q.Active != nil {
		active := *q.Active
		if q.Active.StartedAtMs != nil {
			started := *q.Active.StartedAtMs
			active.StartedAtMs = &started
		}
		out.Active = &active
	}
	out.Queued = append(out.Queued, q.Queued...)
	return out
}

// Replace swaps in a server snapshot wholesale. Nothing local is merged; a blob
// without resources keeps the current balances until the next Reconcile.
func (s *Session) Replace(snap economy.BaseSnapshot, now time.Time) {
	s.mu.Lock()
	s.load(snap, now.UnixMilli())
	s.mu.Unlock()
}

// Reconcile overwrites local balances and tiers with a server-confirmed answer.
func (s *Session) Reconcile(remote ports.RemoteBase, now time.Time) {
	s.mu.Lock()
	s.res = remote.Resources
	if remote.Version > 0 {
		gc := &s.snap.MechanicsState.GlobalCharges
		if gc.LastAccrueAtMs == 0 {
			gc.LastAccrueAtMs = now.UnixMilli()
		}
		gc.Charges = remote.Charges
	}
	if len(remote.Levels) > 0 {
		placements := s.snap.Placements.Clone()
		for id, tier := range remote.Levels {
			if tier <= 0 {
				continue
			}
			if cell, ok := placements.CellOf(id); ok {
				placements[cell] = economy.Placement{BuildingID: id, Tier: tier}
				continue
			}
			if cell, ok := s.freeCell(placements); ok {
				placements[cell] = economy.Placement{BuildingID: id, Tier: tier}
				s.snap.BuildingVisuals[cell] = string(id)
			}
		}
		s.snap.Placements = placements
		s.ledger.Recompute(placements, s.snap.MechanicsState.Perks)
	}
	s.mu.Unlock()
	s.notify(true)
}

func (s *Session) freeCell(p economy.Placements) (economy.CellID, bool) {
	for _, c := range s.snap.Cells {
		if _, taken := p[c.ID]; taken || s.snap.BuildQueue.HasJobForCell(c.ID) {
			continue
		}
		return c.ID, true
	}
	return "", false
}

// RunTicker ticks at period until ctx is cancelled. onTick, if set, receives
// the view after every tick.
func (s *Session) RunTicker(ctx context.Context, period time.Duration, now func() time.Time, onTick func(View)) {
	if now == nil {
		now = time.Now
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			at := now()
			s.Tick(at)
			if onTick != nil {
				onTick(s.View(at))
			}
		}
	}
}
