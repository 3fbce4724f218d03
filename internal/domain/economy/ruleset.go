package economy

import "time"

type DebuffKind string

const (
	DebuffFuders  DebuffKind = "fuders"
	DebuffJeets   DebuffKind = "jeets"
	DebuffMevBots DebuffKind = "mev_bots"
)

var AllDebuffKinds = []DebuffKind{DebuffFuders, DebuffJeets, DebuffMevBots}

type Perk string

const (
	PerkEfficientBuilders Perk = "efficient_builders"
	PerkDeepStorage       Perk = "deep_storage"
	PerkThickSkin         Perk = "thick_skin"
	PerkLuckyCharms       Perk = "lucky_charms"
)

// ThreatRule describes one debuff kind. Penalty fields are neutral at their zero value
// except the multipliers, which are neutral at 1.
type ThreatRule struct {
	SpawnPerTick      float64
	SpawnPerTickLate  float64
	Duration          time.Duration
	NaturalSpawn      bool
	SwarmUnits        int
	YieldMul          float64
	AlphaMul          float64
	CashDrainPerSec   float64
	ActionCashCostMul float64
	BuildTimeMul      float64
	JamChance         float64
}

// Ruleset holds the tunable parameters of the simulation. Zero-payout actions are
// configuration: the engine reads them from here.
type Ruleset struct {
	BaseCaps Resources

	ChargePool     map[ActionKey]bool
	MaxCharges     int
	ChargeInterval time.Duration

	ZeroPayout map[ActionKey]bool

	MonUnlockDay int

	JamAlphaPenalty float64

	DailyMultipliers []float64
	DailyFloor       float64
	DailyEpoch       time.Time

	CleanseReduce   time.Duration
	CoverageExtend  time.Duration
	BlessDuration   time.Duration
	BlessYieldMul   float64
	MaxBoostCharges int
	PerkOrder       []Perk

	AggroYieldMul float64
	AggroSpawnMul float64

	Threats              map[DebuffKind]ThreatRule
	ThreatLateDay        int
	MaxConcurrentDebuffs int
	RadarSpawnMul        float64
	CoverageSpawnMul     float64
	MultiplierFloor      float64
	MaxJamChance         float64

	Swarm SwarmRule
}

type SwarmRule struct {
	OrbitRadius   float64
	AngularSpeed  float64
	UnitHP        int
	ClickRadius   float64
	ClickDamage   int
	Knockback     float64
	LungeMin      time.Duration
	LungeMax      time.Duration
	LungeSpeed    float64
	ImpactCash    float64
	ClearBonus    float64
	MaxImpactsLog int
}

func DefaultRuleset() Ruleset {
	return Ruleset{
		BaseCaps: Resources{Cash: 5000, Yield: 500, Alpha: 100, Tickets: 50, Mon: 20, Faith: 30},
		ChargePool: map[ActionKey]bool{
			{Building: BuildingRugSalvageYard, Action: ActionSalvage}:   true,
			{Building: BuildingYieldFarm, Action: ActionHarvestYield}:   true,
			{Building: BuildingTicketBooth, Action: ActionPrintTickets}: true,
		},
		MaxCharges:     6,
		ChargeInterval: time.Hour,
		ZeroPayout: map[ActionKey]bool{
			{Building: BuildingMemeGallery, Action: ActionMintMeme}: true,
			{Building: BuildingMemeGallery, Action: ActionExhibit}:  true,
			{Building: BuildingStorageSilo, Action: ActionAudit}:    true,
		},
		MonUnlockDay:     2,
		JamAlphaPenalty:  1,
		DailyMultipliers: []float64{1, 0.8, 0.65, 0.5, 0.4},
		DailyFloor:       0.35,
		DailyEpoch:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CleanseReduce:    60 * time.Second,
		CoverageExtend:   30 * time.Minute,
		BlessDuration:    10 * time.Minute,
		BlessYieldMul:    1.5,
		MaxBoostCharges:  3,
		PerkOrder:        []Perk{PerkEfficientBuilders, PerkDeepStorage, PerkThickSkin, PerkLuckyCharms},
		AggroYieldMul:    1.5,
		AggroSpawnMul:    1.25,
		Threats: map[DebuffKind]ThreatRule{
			DebuffFuders: {
				SpawnPerTick: 0.004, SpawnPerTickLate: 0.010, Duration: 180 * time.Second,
				NaturalSpawn: true, SwarmUnits: 10,
				YieldMul: 0, AlphaMul: 0.5, ActionCashCostMul: 1, BuildTimeMul: 1,
			},
			DebuffJeets: {
				SpawnPerTick: 0.003, SpawnPerTickLate: 0.008, Duration: 240 * time.Second,
				NaturalSpawn: true, SwarmUnits: 14,
				YieldMul: 1, AlphaMul: 1, CashDrainPerSec: 0.8, ActionCashCostMul: 1.25, BuildTimeMul: 1,
			},
			DebuffMevBots: {
				SpawnPerTick: 0.002, SpawnPerTickLate: 0.006, Duration: 150 * time.Second,
				NaturalSpawn: false, SwarmUnits: 6,
				YieldMul: 1, AlphaMul: 1, ActionCashCostMul: 1, BuildTimeMul: 1.5, JamChance: 0.15,
			},
		},
		ThreatLateDay:        2,
		MaxConcurrentDebuffs: 2,
		RadarSpawnMul:        0.6,
		CoverageSpawnMul:     0.4,
		MultiplierFloor:      0.05,
		MaxJamChance:         0.95,
		Swarm: SwarmRule{
			OrbitRadius:   220,
			AngularSpeed:  0.6,
			UnitHP:        2,
			ClickRadius:   48,
			ClickDamage:   1,
			Knockback:     40,
			LungeMin:      4 * time.Second,
			LungeMax:      8 * time.Second,
			LungeSpeed:    420,
			ImpactCash:    2,
			ClearBonus:    1,
			MaxImpactsLog: 32,
		},
	}
}

func (r Ruleset) IsChargePool(key ActionKey) bool { return r.ChargePool[key] }

func (r Ruleset) IsZeroPayout(key ActionKey) bool { return r.ZeroPayout[key] }

// DailyMultiplier returns the reward multiplier for the use with the given
// zero-based index within a day.
func (r Ruleset) DailyMultiplier(usesSoFar int) float64 {
	if usesSoFar < 0 {
		usesSoFar = 0
	}
	if usesSoFar < len(r.DailyMultipliers) {
		return r.DailyMultipliers[usesSoFar]
	}
	return r.DailyFloor
}

// DailyIndex is the number of whole UTC days between the ruleset epoch and now.
func (r Ruleset) DailyIndex(nowMs int64) int64 {
	epochMs := r.DailyEpoch.UnixMilli()
	if nowMs < epochMs {
		return 0
	}
	return (nowMs - epochMs) / int64(24*time.Hour/time.Millisecond)
}
