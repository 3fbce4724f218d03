package economy

import (
	"fmt"
	"math"
	"sort"
)

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) dist(o Vec) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

type UnitPhase string

const (
	PhaseOrbit  UnitPhase = "orbit"
	PhaseLunge  UnitPhase = "lunge"
	PhaseReturn UnitPhase = "return"
)

type SwarmUnit struct {
	ID            string    `json:"id"`
	HP            int       `json:"hp"`
	Angle         float64   `json:"angle"`
	Radius        float64   `json:"radius"`
	Pos           Vec       `json:"pos"`
	Phase         UnitPhase `json:"phase"`
	TargetCell    CellID    `json:"targetCell,omitempty"`
	Target        Vec       `json:"target"`
	NextLungeAtMs int64     `json:"nextLungeAtMs"`
}

// Impact records a unit reaching a building. CashLoss is informational and never
// debited from the balance.
type Impact struct {
	Kind     DebuffKind `json:"kind"`
	Cell     CellID     `json:"cell"`
	CashLoss float64    `json:"cashLoss"`
	AtMs     int64      `json:"atMs"`
}

// SwarmInstance is the visual counterpart of one active debuff.
type SwarmInstance struct {
	Kind         DebuffKind  `json:"kind"`
	Units        []SwarmUnit `json:"units"`
	ExpiresAtMs  int64       `json:"expiresAtMs"`
	LastUpdateMs int64       `json:"lastUpdateMs"`
	Impacts      []Impact    `json:"impacts"`
}

func NewSwarm(rules Ruleset, kind DebuffKind, expiresAtMs, nowMs int64, rng RandSource) SwarmInstance {
	n := rules.Threats[kind].SwarmUnits
	s := SwarmInstance{Kind: kind, ExpiresAtMs: expiresAtMs, LastUpdateMs: nowMs, Units: make([]SwarmUnit, 0, n)}
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		u := SwarmUnit{
			ID:     fmt.Sprintf("%s-%d", kind, i),
			HP:     rules.Swarm.UnitHP,
			Angle:  angle,
			Radius: rules.Swarm.OrbitRadius,
			Phase:  PhaseOrbit,
		}
		u.Pos = orbitPoint(u.Angle, u.Radius)
		u.NextLungeAtMs = nowMs + lungeDelayMs(rules, rng)
		s.Units = append(s.Units, u)
	}
	return s
}

func orbitPoint(angle, radius float64) Vec {
	return Vec{X: math.Cos(angle) * radius, Y: math.Sin(angle) * radius}
}

func lungeDelayMs(rules Ruleset, rng RandSource) int64 {
	lo, hi := rules.Swarm.LungeMin.Milliseconds(), rules.Swarm.LungeMax.Milliseconds()
	if rng == nil || hi <= lo {
		return lo
	}
	return lo + int64(rng.Float64()*float64(hi-lo))
}

// SyncSwarms creates an instance for every active debuff lacking one and destroys
// instances whose debuff is gone or expired.
func SyncSwarms(rules Ruleset, swarms map[DebuffKind]SwarmInstance, mech MechanicsState, nowMs int64, rng RandSource) map[DebuffKind]SwarmInstance {
	out := make(map[DebuffKind]SwarmInstance, len(swarms))
	for _, d := range mech.ActiveDebuffs(nowMs) {
		if s, ok := swarms[d.ID]; ok {
			s.ExpiresAtMs = d.ExpiresAtMs
			out[d.ID] = s
			continue
		}
		out[d.ID] = NewSwarm(rules, d.ID, d.ExpiresAtMs, nowMs, rng)
	}
	return out
}

// Update advances every unit to nowMs and returns impacts recorded on this step.
func (s *SwarmInstance) Update(rules Ruleset, cells []Cell, placements Placements, nowMs int64, rng RandSource) []Impact {
	dt := float64(nowMs-s.LastUpdateMs) / 1000
	if dt <= 0 {
		return nil
	}
	s.LastUpdateMs = nowMs
	cellPos := make(map[CellID]Vec, len(cells))
	for _, c := range cells {
		cellPos[c.ID] = Vec{X: c.X, Y: c.Y}
	}
	occupied := placements.OccupiedCells()
	step := rules.Swarm.LungeSpeed * dt

	var impacts []Impact
	for i := range s.Units {
		u := &s.Units[i]
		switch u.Phase {
		case PhaseLunge:
			if moveToward(&u.Pos, u.Target, step) {
				imp := Impact{Kind: s.Kind, Cell: u.TargetCell, CashLoss: rules.Swarm.ImpactCash, AtMs: nowMs}
				impacts = append(impacts, imp)
				u.Phase = PhaseReturn
				u.TargetCell = ""
			}
		case PhaseReturn:
			u.Angle += rules.Swarm.AngularSpeed * dt
			u.Radius = rules.Swarm.OrbitRadius
			if moveToward(&u.Pos, orbitPoint(u.Angle, u.Radius), step) {
				u.Phase = PhaseOrbit
				u.NextLungeAtMs = nowMs + lungeDelayMs(rules, rng)
			}
		default:
			u.Angle += rules.Swarm.AngularSpeed * dt
			// Knocked back units drift back to the orbit ring.
			if u.Radius > rules.Swarm.OrbitRadius {
				u.Radius = math.Max(rules.Swarm.OrbitRadius, u.Radius-step)
			}
			u.Pos = orbitPoint(u.Angle, u.Radius)
			if nowMs < u.NextLungeAtMs {
				continue
			}
			if len(occupied) == 0 {
				u.NextLungeAtMs = nowMs + lungeDelayMs(rules, rng)
				continue
			}
			target := occupied[0]
			if rng != nil && len(occupied) > 1 {
				target = occupied[rng.Intn(len(occupied))]
			}
			pos, ok := cellPos[target]
			if !ok {
				u.NextLungeAtMs = nowMs + lungeDelayMs(rules, rng)
				continue
			}
			u.Phase = PhaseLunge
			u.TargetCell = target
			u.Target = pos
		}
	}
	s.Impacts = append(s.Impacts, impacts...)
	if limit := rules.Swarm.MaxImpactsLog; limit > 0 && len(s.Impacts) > limit {
		s.Impacts = append([]Impact{}, s.Impacts[len(s.Impacts)-limit:]...)
	}
	return impacts
}

func moveToward(pos *Vec, target Vec, step float64) bool {
	d := pos.dist(target)
	if d <= step || d == 0 {
		*pos = target
		return true
	}
	pos.X += (target.X - pos.X) / d * step
	pos.Y += (target.Y - pos.Y) / d * step
	return false
}

type WipeResult struct {
	Hits   int `json:"hits"`
	Killed int `json:"killed"`
}

// WipeAt damages every unit within the click radius of (x, y) and knocks survivors
// outward. Units reaching zero hp are removed.
func (s *SwarmInstance) WipeAt(rules Ruleset, x, y float64) WipeResult {
	var res WipeResult
	at := Vec{X: x, Y: y}
	kept := s.Units[:0]
	for _, u := range s.Units {
		if u.Pos.dist(at) > rules.Swarm.ClickRadius {
			kept = append(kept, u)
			continue
		}
		res.Hits++
		u.HP -= rules.Swarm.ClickDamage
		if u.HP <= 0 {
			res.Killed++
			continue
		}
		knockBack(&u, rules.Swarm.Knockback)
		kept = append(kept, u)
	}
	s.Units = kept
	return res
}

func knockBack(u *SwarmUnit, dist float64) {
	r := math.Hypot(u.Pos.X, u.Pos.Y)
	if r == 0 {
		u.Pos.X += dist
	} else {
		u.Pos.X += u.Pos.X / r * dist
		u.Pos.Y += u.Pos.Y / r * dist
	}
	u.Angle = math.Atan2(u.Pos.Y, u.Pos.X)
	u.Radius = math.Hypot(u.Pos.X, u.Pos.Y)
	if u.Phase != PhaseOrbit {
		u.Phase = PhaseReturn
		u.TargetCell = ""
	}
}

func (s SwarmInstance) Cleared() bool { return len(s.Units) == 0 }

// SortedKinds lists swarm kinds in a stable order for rendering and iteration.
func SortedKinds(swarms map[DebuffKind]SwarmInstance) []DebuffKind {
	out := make([]DebuffKind, 0, len(swarms))
	for k := range swarms {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PerfectClear resolves a swarm wiped out before its debuff expired: the debuff is
// removed and the clear bonus is credited as whole tickets, clamped to caps.
func PerfectClear(rules Ruleset, mech MechanicsState, res, caps Resources, kind DebuffKind, nowMs int64) (MechanicsState, Resources, bool) {
	if !mech.HasDebuff(kind, nowMs) {
		return mech, res, false
	}
	out := ClearDebuff(mech, kind)
	res.Tickets = math.Floor(res.Tickets + rules.Swarm.ClearBonus)
	return out, res.ClampTo(caps), true
}
