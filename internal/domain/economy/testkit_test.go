package economy

import (
	"math"
	"time"
)

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }

func (r fixedRand) Intn(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func key(b BuildingID, a ActionID) ActionKey { return ActionKey{Building: b, Action: a} }

func newEngine(rng RandSource) Engine {
	return NewEngine(DefaultCatalog(), DefaultRuleset(), rng)
}

func withDebuff(mech MechanicsState, kind DebuffKind, expiresAtMs int64) MechanicsState {
	out := mech.Clone()
	out.Debuffs = append(out.Debuffs, Debuff{ID: kind, ExpiresAtMs: expiresAtMs})
	return out
}
