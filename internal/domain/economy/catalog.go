package economy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type BuildingID string

type ActionID string

const (
	BuildingCommandHub     BuildingID = "command_hub"
	BuildingRugSalvageYard BuildingID = "rug_salvage_yard"
	BuildingYieldFarm      BuildingID = "yield_farm"
	BuildingAlphaLab       BuildingID = "alpha_lab"
	BuildingTicketBooth    BuildingID = "ticket_booth"
	BuildingStorageSilo    BuildingID = "storage_silo"
	BuildingRadarTower     BuildingID = "radar_tower"
	BuildingInsuranceDesk  BuildingID = "insurance_desk"
	BuildingShillOffice    BuildingID = "shill_office"
	BuildingShrine         BuildingID = "shrine"
	BuildingReactor        BuildingID = "reactor"
	BuildingRaidCamp       BuildingID = "raid_camp"
	BuildingMonVault       BuildingID = "mon_vault"
	BuildingMemeGallery    BuildingID = "meme_gallery"
	BuildingAcademy        BuildingID = "academy"
)

const (
	ActionRally        ActionID = "rally"
	ActionSalvage      ActionID = "salvage"
	ActionHarvestYield ActionID = "harvest_yield"
	ActionToggleMode   ActionID = "toggle_mode"
	ActionResearch     ActionID = "research"
	ActionPrintTickets ActionID = "print_tickets"
	ActionAudit        ActionID = "audit"
	ActionPing         ActionID = "ping"
	ActionBuyCoverage  ActionID = "buy_coverage"
	ActionCleanse      ActionID = "cleanse"
	ActionPray         ActionID = "pray"
	ActionBless        ActionID = "bless"
	ActionIgnite       ActionID = "ignite"
	ActionDischarge    ActionID = "discharge"
	ActionRaid         ActionID = "raid"
	ActionHeist        ActionID = "heist"
	ActionStakeMon     ActionID = "stake_mon"
	ActionMintMeme     ActionID = "mint_meme"
	ActionExhibit      ActionID = "exhibit"
	ActionLearn        ActionID = "learn"
)

const MaxTier = 4

// ActionKey identifies one action on one building.
type ActionKey struct {
	Building BuildingID
	Action   ActionID
}

func (k ActionKey) String() string {
	return string(k.Building) + ":" + string(k.Action)
}

func (k ActionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ActionKey) UnmarshalText(b []byte) error {
	parsed, err := ParseActionKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func ParseActionKey(s string) (ActionKey, error) {
	building, action, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || building == "" || action == "" {
		return ActionKey{}, fmt.Errorf("invalid action key %q", s)
	}
	return ActionKey{Building: BuildingID(building), Action: ActionID(action)}, nil
}

type ScalingKind string

const (
	ScaleLinear25 ScalingKind = "linear25"
	ScaleFlat     ScalingKind = "flat"
	ScaleTable    ScalingKind = "table"
)

type Scaling struct {
	Kind  ScalingKind
	Table [MaxTier]float64
}

func (s Scaling) Multiplier(tier int) float64 {
	tier = clampTier(tier)
	switch s.Kind {
	case ScaleFlat:
		return 1
	case ScaleTable:
		return s.Table[tier-1]
	default:
		return 1 + float64(tier-1)*0.25
	}
}

func clampTier(tier int) int {
	if tier < 1 {
		return 1
	}
	if tier > MaxTier {
		return MaxTier
	}
	return tier
}

type ActionTemplate struct {
	ID       ActionID
	Cost     Resources
	Reward   Resources
	Cooldown time.Duration
	Scaling  Scaling
	// DailyCap > 0 enables the diminishing daily-use rule for this action.
	DailyCap int
}

type TierSpec struct {
	Cost     Resources
	Duration time.Duration
}

type BuildingDef struct {
	ID       BuildingID
	Name     string
	Priority int
	Tiers    [MaxTier]TierSpec
	Actions  []ActionTemplate
	// PassiveRate is the per-second production at tier 1; scaled linear25 by tier.
	PassiveRate Resources
}

func (d BuildingDef) Tier(tier int) TierSpec {
	return d.Tiers[clampTier(tier)-1]
}

func (d BuildingDef) Action(id ActionID) (ActionTemplate, bool) {
	for _, a := range d.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return ActionTemplate{}, false
}

// Catalog is immutable once built.
type Catalog struct {
	byID    map[BuildingID]BuildingDef
	ordered []BuildingID
}

func NewCatalog(defs []BuildingDef) Catalog {
	c := Catalog{byID: make(map[BuildingID]BuildingDef, len(defs))}
	for _, d := range defs {
		c.byID[d.ID] = d
		c.ordered = append(c.ordered, d.ID)
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.byID[c.ordered[i]].Priority < c.byID[c.ordered[j]].Priority
	})
	return c
}

func (c Catalog) Building(id BuildingID) (BuildingDef, bool) {
	d, ok := c.byID[id]
	return d, ok
}

func (c Catalog) Action(key ActionKey) (ActionTemplate, bool) {
	d, ok := c.byID[key.Building]
	if !ok {
		return ActionTemplate{}, false
	}
	return d.Action(key.Action)
}

// Buildings returns definitions in build-priority order.
func (c Catalog) Buildings() []BuildingDef {
	out := make([]BuildingDef, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.byID[id])
	}
	return out
}

func linear() Scaling { return Scaling{Kind: ScaleLinear25} }
func flat() Scaling   { return Scaling{Kind: ScaleFlat} }

func tiers(costs [MaxTier]Resources, secs [MaxTier]int) [MaxTier]TierSpec {
	var out [MaxTier]TierSpec
	for i := range out {
		out[i] = TierSpec{Cost: costs[i], Duration: time.Duration(secs[i]) * time.Second}
	}
	return out
}

func DefaultCatalog() Catalog {
	return NewCatalog([]BuildingDef{
		{
			ID: BuildingCommandHub, Name: "Command Hub", Priority: 0,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 200},
				{Cash: 1500, Yield: 50, Alpha: 10},
				{Cash: 6000, Yield: 300, Alpha: 40},
				{Cash: 20000, Yield: 1200, Alpha: 120},
			}, [MaxTier]int{30, 120, 600, 1800}),
			PassiveRate: Resources{Cash: 0.2},
			Actions: []ActionTemplate{
				{ID: ActionRally, Cost: Resources{Cash: 50}, Reward: Resources{Alpha: 2}, Cooldown: 600 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingRugSalvageYard, Name: "Rug Salvage Yard", Priority: 1,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 300}, {Cash: 900}, {Cash: 2700}, {Cash: 8000},
			}, [MaxTier]int{45, 90, 300, 900}),
			PassiveRate: Resources{Cash: 0.5},
			Actions: []ActionTemplate{
				{ID: ActionSalvage, Reward: Resources{Cash: 120}, Cooldown: 300 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingYieldFarm, Name: "Yield Farm", Priority: 2,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 400}, {Cash: 1200, Yield: 40}, {Cash: 3600, Yield: 150}, {Cash: 10000, Yield: 500},
			}, [MaxTier]int{60, 150, 450, 1200}),
			PassiveRate: Resources{Yield: 0.1},
			Actions: []ActionTemplate{
				{ID: ActionHarvestYield, Reward: Resources{Yield: 5}, Cooldown: 300 * time.Second, Scaling: linear()},
				{ID: ActionToggleMode, Cooldown: 60 * time.Second, Scaling: flat()},
			},
		},
		{
			ID: BuildingAlphaLab, Name: "Alpha Lab", Priority: 3,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 600, Yield: 20}, {Cash: 1800, Yield: 80}, {Cash: 5000, Yield: 250}, {Cash: 14000, Yield: 700},
			}, [MaxTier]int{90, 180, 600, 1500}),
			PassiveRate: Resources{Alpha: 0.02},
			Actions: []ActionTemplate{
				{ID: ActionResearch, Cost: Resources{Cash: 200, Yield: 10}, Reward: Resources{Alpha: 5}, Cooldown: 900 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingTicketBooth, Name: "Ticket Booth", Priority: 4,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 500}, {Cash: 1500, Alpha: 5}, {Cash: 4500, Alpha: 20}, {Cash: 12000, Alpha: 60},
			}, [MaxTier]int{60, 180, 480, 1200}),
			Actions: []ActionTemplate{
				{ID: ActionPrintTickets, Cost: Resources{Cash: 100}, Reward: Resources{Tickets: 0.35}, Cooldown: 300 * time.Second,
					Scaling: Scaling{Kind: ScaleTable, Table: [MaxTier]float64{1, 1.5, 2, 3}}},
			},
		},
		{
			ID: BuildingStorageSilo, Name: "Storage Silo", Priority: 5,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 350}, {Cash: 1000}, {Cash: 3000}, {Cash: 9000},
			}, [MaxTier]int{45, 120, 360, 900}),
			Actions: []ActionTemplate{
				{ID: ActionAudit, Cost: Resources{Cash: 20}, Reward: Resources{Cash: 60}, Cooldown: 900 * time.Second, Scaling: flat()},
			},
		},
		{
			ID: BuildingRadarTower, Name: "Radar Tower", Priority: 6,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 800, Alpha: 5}, {Cash: 2000, Alpha: 15}, {Cash: 6000, Alpha: 40}, {Cash: 15000, Alpha: 100},
			}, [MaxTier]int{60, 180, 480, 1200}),
			Actions: []ActionTemplate{
				{ID: ActionPing, Cost: Resources{Alpha: 1}, Cooldown: 600 * time.Second, Scaling: flat()},
			},
		},
		{
			ID: BuildingInsuranceDesk, Name: "Insurance Desk", Priority: 7,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 700}, {Cash: 2000}, {Cash: 5500}, {Cash: 15000},
			}, [MaxTier]int{60, 180, 480, 1200}),
			Actions: []ActionTemplate{
				{ID: ActionBuyCoverage, Cost: Resources{Cash: 250}, Cooldown: 1800 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingShillOffice, Name: "Shill Office", Priority: 8,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 650, Yield: 10}, {Cash: 1900, Yield: 40}, {Cash: 5200, Yield: 150}, {Cash: 14000, Yield: 400},
			}, [MaxTier]int{60, 180, 480, 1200}),
			Actions: []ActionTemplate{
				{ID: ActionCleanse, Cost: Resources{Cash: 150, Alpha: 2}, Cooldown: 600 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingShrine, Name: "Shrine of Cope", Priority: 9,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 500, Tickets: 1}, {Cash: 1500, Tickets: 2}, {Cash: 4000, Tickets: 4}, {Cash: 11000, Tickets: 8},
			}, [MaxTier]int{60, 180, 480, 1200}),
			Actions: []ActionTemplate{
				{ID: ActionPray, Cost: Resources{Cash: 50}, Reward: Resources{Faith: 1}, Cooldown: 300 * time.Second, Scaling: linear()},
				{ID: ActionBless, Cost: Resources{Faith: 3}, Cooldown: 1200 * time.Second, Scaling: flat()},
			},
		},
		{
			ID: BuildingReactor, Name: "Degen Reactor", Priority: 10,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 900, Alpha: 10}, {Cash: 2500, Alpha: 30}, {Cash: 7000, Alpha: 80}, {Cash: 18000, Alpha: 200},
			}, [MaxTier]int{90, 240, 600, 1500}),
			Actions: []ActionTemplate{
				{ID: ActionIgnite, Cost: Resources{Alpha: 3}, Cooldown: 120 * time.Second, Scaling: flat()},
				{ID: ActionDischarge, Reward: Resources{Cash: 150}, Cooldown: 600 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingRaidCamp, Name: "Raid Camp", Priority: 11,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 1000, Alpha: 10}, {Cash: 3000, Alpha: 30}, {Cash: 8000, Alpha: 80}, {Cash: 20000, Alpha: 200},
			}, [MaxTier]int{120, 300, 720, 1800}),
			Actions: []ActionTemplate{
				{ID: ActionRaid, Cost: Resources{Alpha: 1}, Reward: Resources{Cash: 150}, Cooldown: 60 * time.Second, Scaling: linear(), DailyCap: 6},
				{ID: ActionHeist, Cost: Resources{Alpha: 2}, Reward: Resources{Tickets: 0.5}, Cooldown: 90 * time.Second, Scaling: linear(), DailyCap: 8},
			},
		},
		{
			ID: BuildingMonVault, Name: "MON Vault", Priority: 12,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 1200}, {Cash: 3000, Mon: 2}, {Cash: 9000, Mon: 5}, {Cash: 22000, Mon: 10},
			}, [MaxTier]int{90, 240, 600, 1500}),
			Actions: []ActionTemplate{
				{ID: ActionStakeMon, Cost: Resources{Mon: 1}, Reward: Resources{Yield: 40}, Cooldown: 3600 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingMemeGallery, Name: "Meme Gallery", Priority: 13,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 450}, {Cash: 1300}, {Cash: 3800}, {Cash: 10000},
			}, [MaxTier]int{45, 120, 360, 900}),
			Actions: []ActionTemplate{
				{ID: ActionMintMeme, Cost: Resources{Cash: 40}, Reward: Resources{Tickets: 1}, Cooldown: 600 * time.Second, Scaling: flat()},
				{ID: ActionExhibit, Reward: Resources{Cash: 50}, Cooldown: 300 * time.Second, Scaling: linear()},
			},
		},
		{
			ID: BuildingAcademy, Name: "Degen Academy", Priority: 14,
			Tiers: tiers([MaxTier]Resources{
				{Cash: 1500, Alpha: 20}, {Cash: 4000, Alpha: 60}, {Cash: 10000, Alpha: 150}, {Cash: 25000, Alpha: 400},
			}, [MaxTier]int{120, 300, 900, 2400}),
			Actions: []ActionTemplate{
				{ID: ActionLearn, Cost: Resources{Alpha: 10}, Cooldown: 3600 * time.Second, Scaling: flat()},
			},
		},
	})
}
