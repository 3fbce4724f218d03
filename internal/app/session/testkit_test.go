package session

import (
	"fmt"
	"math"
	"time"

	"reefbase/internal/domain/economy"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// quietRand never rolls a spawn or a jam.
type quietRand struct{}

func (quietRand) Float64() float64 { return 1 }
func (quietRand) Intn(int) int     { return 0 }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

type mutations struct{ n int }

func (m *mutations) hook() { m.n++ }

func newTestSession(snap economy.BaseSnapshot, m *mutations) *Session {
	seq := 0
	cfg := Config{
		Catalog: economy.DefaultCatalog(),
		Rules:   economy.DefaultRuleset(),
		Rand:    quietRand{},
		NewJobID: func() string {
			seq++
			return fmt.Sprintf("job-%d", seq)
		},
	}
	if m != nil {
		cfg.OnMutate = m.hook
	}
	return New(cfg, snap, testNow)
}

func snapshotWith(cash float64, placements economy.Placements) economy.BaseSnapshot {
	snap := economy.NewBaseSnapshot()
	snap.CreatedAtMs = testNow.UnixMilli()
	for cell, pl := range placements {
		snap.Placements[cell] = pl
	}
	snap.Resources = &economy.Resources{Cash: cash}
	return snap
}
