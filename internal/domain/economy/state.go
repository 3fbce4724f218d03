package economy

import (
	"fmt"
	"sort"
)

type CellID string

type Cell struct {
	ID CellID  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

const (
	CellCount = 16
	cellPitch = 96.0
)

// DefaultCells lays out the 16 base cells on a 4x4 grid centred on the origin.
func DefaultCells() []Cell {
	out := make([]Cell, 0, CellCount)
	for i := 0; i < CellCount; i++ {
		col, row := i%4, i/4
		out = append(out, Cell{
			ID: CellID(fmt.Sprintf("c%d", i)),
			X:  (float64(col) - 1.5) * cellPitch,
			Y:  (float64(row) - 1.5) * cellPitch,
		})
	}
	return out
}

type Placement struct {
	BuildingID BuildingID `json:"buildingId"`
	Tier       int        `json:"tier"`
}

type Placements map[CellID]Placement

func (p Placements) Clone() Placements {
	out := make(Placements, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// CellOf returns the cell holding the building, if placed.
func (p Placements) CellOf(id BuildingID) (CellID, bool) {
	for cell, pl := range p {
		if pl.BuildingID == id {
			return cell, true
		}
	}
	return "", false
}

func (p Placements) TierOf(id BuildingID) int {
	if cell, ok := p.CellOf(id); ok {
		return p[cell].Tier
	}
	return 0
}

func (p Placements) Has(id BuildingID) bool {
	_, ok := p.CellOf(id)
	return ok
}

// OccupiedCells returns occupied cell ids in a stable order.
func (p Placements) OccupiedCells() []CellID {
	out := make([]CellID, 0, len(p))
	for cell := range p {
		out = append(out, cell)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type YieldMode string

const (
	YieldModeSafe  YieldMode = "safe"
	YieldModeAggro YieldMode = "aggro"
)

type Debuff struct {
	ID          DebuffKind `json:"id"`
	ExpiresAtMs int64      `json:"expiresAtMs"`
}

type GlobalCharges struct {
	LastAccrueAtMs int64 `json:"lastAccrueAtMs"`
	Charges        int   `json:"charges"`
}

type DailyUsage struct {
	DayIndex int64             `json:"dayIndex"`
	Counts   map[ActionKey]int `json:"perActionUseCounts"`
}

type MechanicsState struct {
	Debuffs             []Debuff            `json:"debuffs"`
	CoverageUntilMs     int64               `json:"coverageUntilMs"`
	YieldBoostUntilMs   int64               `json:"yieldBoostUntilMs"`
	YieldBoostMul       float64             `json:"yieldBoostMul"`
	BoostCharges        int                 `json:"boostCharges"`
	Perks               []Perk              `json:"perks"`
	YieldMode           YieldMode           `json:"yieldMode"`
	LastActionMs        map[ActionKey]int64 `json:"lastActionMs"`
	GlobalCharges       GlobalCharges       `json:"globalCharges"`
	TicketFractionCarry float64             `json:"ticketFractionCarry"`
	RaidDaily           DailyUsage          `json:"raidDaily"`
}

func NewMechanicsState() MechanicsState {
	return MechanicsState{
		Debuffs:       []Debuff{},
		YieldBoostMul: 1,
		Perks:         []Perk{},
		YieldMode:     YieldModeSafe,
		LastActionMs:  map[ActionKey]int64{},
		RaidDaily:     DailyUsage{Counts: map[ActionKey]int{}},
	}
}

// Clone deep-copies the state so transforms never alias the caller's maps.
func (m MechanicsState) Clone() MechanicsState {
	out := m
	out.Debuffs = append([]Debuff{}, m.Debuffs...)
	out.Perks = append([]Perk{}, m.Perks...)
	out.LastActionMs = make(map[ActionKey]int64, len(m.LastActionMs))
	for k, v := range m.LastActionMs {
		out.LastActionMs[k] = v
	}
	out.RaidDaily.Counts = make(map[ActionKey]int, len(m.RaidDaily.Counts))
	for k, v := range m.RaidDaily.Counts {
		out.RaidDaily.Counts[k] = v
	}
	if out.YieldMode == "" {
		out.YieldMode = YieldModeSafe
	}
	if out.YieldBoostMul == 0 {
		out.YieldBoostMul = 1
	}
	return out
}

func (m MechanicsState) HasPerk(p Perk) bool {
	for _, have := range m.Perks {
		if have == p {
			return true
		}
	}
	return false
}

func (m MechanicsState) ActiveDebuffs(nowMs int64) []Debuff {
	out := make([]Debuff, 0, len(m.Debuffs))
	for _, d := range m.Debuffs {
		if d.ExpiresAtMs > nowMs {
			out = append(out, d)
		}
	}
	return out
}

func (m MechanicsState) HasDebuff(kind DebuffKind, nowMs int64) bool {
	for _, d := range m.ActiveDebuffs(nowMs) {
		if d.ID == kind {
			return true
		}
	}
	return false
}

func (m *MechanicsState) removeDebuff(kind DebuffKind) {
	out := m.Debuffs[:0:0]
	for _, d := range m.Debuffs {
		if d.ID != kind {
			out = append(out, d)
		}
	}
	m.Debuffs = out
}

// BaseSnapshot is the full client-side base blob.
type BaseSnapshot struct {
	Version         int               `json:"version"`
	Cells           []Cell            `json:"cells"`
	Placements      Placements        `json:"placements"`
	BuildingVisuals map[CellID]string `json:"buildingVisuals,omitempty"`
	BuildQueue      Queue             `json:"buildQueue"`
	MechanicsState  MechanicsState    `json:"mechanicsState"`
	Resources       *Resources        `json:"resources,omitempty"`
	CreatedAtMs     int64             `json:"createdAtMs,omitempty"`
	SavedAtMs       int64             `json:"savedAtMs,omitempty"`
}

const SnapshotVersion = 1

const dayMs = int64(24 * 60 * 60 * 1000)

// GameDay counts whole days since the base was founded. Day 0 is the founding day.
func GameDay(createdAtMs, nowMs int64) int {
	if createdAtMs <= 0 || nowMs <= createdAtMs {
		return 0
	}
	return int((nowMs - createdAtMs) / dayMs)
}

func NewBaseSnapshot() BaseSnapshot {
	return BaseSnapshot{
		Version:         SnapshotVersion,
		Cells:           DefaultCells(),
		Placements:      Placements{},
		BuildingVisuals: map[CellID]string{},
		BuildQueue:      Queue{Queued: []BuildJob{}},
		MechanicsState:  NewMechanicsState(),
	}
}

// Normalize fills absent collections after decoding an older or partial blob.
func (s BaseSnapshot) Normalize() BaseSnapshot {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if len(s.Cells) == 0 {
		s.Cells = DefaultCells()
	}
	if s.Placements == nil {
		s.Placements = Placements{}
	}
	if s.BuildingVisuals == nil {
		s.BuildingVisuals = map[CellID]string{}
	}
	if s.BuildQueue.Queued == nil {
		s.BuildQueue.Queued = []BuildJob{}
	}
	s.MechanicsState = s.MechanicsState.Clone()
	if s.MechanicsState.Debuffs == nil {
		s.MechanicsState.Debuffs = []Debuff{}
	}
	return s
}
