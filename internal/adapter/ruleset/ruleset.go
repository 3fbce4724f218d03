package ruleset

import (
	"fmt"
	"os"
	"time"

	"reefbase/internal/domain/economy"

	"gopkg.in/yaml.v3"
)

// File is the YAML override document. Absent fields keep the compiled defaults.
type File struct {
	BaseCaps              *economy.Resources        `yaml:"base_caps"`
	ChargePool            []string                  `yaml:"charge_pool"`
	MaxCharges            *int                      `yaml:"max_charges"`
	ChargeIntervalSeconds *int                      `yaml:"charge_interval_seconds"`
	ZeroPayout            *[]string                 `yaml:"zero_payout"`
	MonUnlockDay          *int                      `yaml:"mon_unlock_day"`
	JamAlphaPenalty       *float64                  `yaml:"jam_alpha_penalty"`
	DailyMultipliers      []float64                 `yaml:"daily_multipliers"`
	DailyFloor            *float64                  `yaml:"daily_floor"`
	ThreatLateDay         *int                      `yaml:"threat_late_day"`
	MaxConcurrentDebuffs  *int                      `yaml:"max_concurrent_debuffs"`
	RadarSpawnMul         *float64                  `yaml:"radar_spawn_mul"`
	CoverageSpawnMul      *float64                  `yaml:"coverage_spawn_mul"`
	Threats               map[string]ThreatOverride `yaml:"threats"`
	Server                Server                    `yaml:"server"`
}

type ThreatOverride struct {
	SpawnPerTick     *float64 `yaml:"spawn_per_tick"`
	SpawnPerTickLate *float64 `yaml:"spawn_per_tick_late"`
	DurationSeconds  *int     `yaml:"duration_seconds"`
	NaturalSpawn     *bool    `yaml:"natural_spawn"`
	SwarmUnits       *int     `yaml:"swarm_units"`
}

// Server holds the Worker API knobs that live beside the ruleset.
type Server struct {
	SaveCooldownMs int `yaml:"save_cooldown_ms"`
	StateMaxChars  int `yaml:"state_max_chars"`
}

func Load(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("ruleset.yaml: %w", err)
	}
	return f, nil
}

// Apply overlays the file on base and returns the merged ruleset.
func (f File) Apply(base economy.Ruleset) (economy.Ruleset, error) {
	out := base
	if f.BaseCaps != nil {
		out.BaseCaps = *f.BaseCaps
	}
	if f.ChargePool != nil {
		keys, err := parseKeys(f.ChargePool)
		if err != nil {
			return base, fmt.Errorf("charge_pool: %w", err)
		}
		out.ChargePool = keys
	}
	if f.ZeroPayout != nil {
		keys, err := parseKeys(*f.ZeroPayout)
		if err != nil {
			return base, fmt.Errorf("zero_payout: %w", err)
		}
		out.ZeroPayout = keys
	}
	setInt(&out.MaxCharges, f.MaxCharges)
	if f.ChargeIntervalSeconds != nil {
		if *f.ChargeIntervalSeconds <= 0 {
			return base, fmt.Errorf("charge_interval_seconds must be positive")
		}
		out.ChargeInterval = time.Duration(*f.ChargeIntervalSeconds) * time.Second
	}
	setInt(&out.MonUnlockDay, f.MonUnlockDay)
	setFloat(&out.JamAlphaPenalty, f.JamAlphaPenalty)
	if len(f.DailyMultipliers) > 0 {
		out.DailyMultipliers = append([]float64(nil), f.DailyMultipliers...)
	}
	setFloat(&out.DailyFloor, f.DailyFloor)
	setInt(&out.ThreatLateDay, f.ThreatLateDay)
	setInt(&out.MaxConcurrentDebuffs, f.MaxConcurrentDebuffs)
	setFloat(&out.RadarSpawnMul, f.RadarSpawnMul)
	setFloat(&out.CoverageSpawnMul, f.CoverageSpawnMul)

	if len(f.Threats) > 0 {
		threats := make(map[economy.DebuffKind]economy.ThreatRule, len(base.Threats))
		for k, v := range base.Threats {
			threats[k] = v
		}
		for name, o := range f.Threats {
			kind := economy.DebuffKind(name)
			rule, ok := threats[kind]
			if !ok {
				return base, fmt.Errorf("threats: unknown kind %q", name)
			}
			setFloat(&rule.SpawnPerTick, o.SpawnPerTick)
			setFloat(&rule.SpawnPerTickLate, o.SpawnPerTickLate)
			if o.DurationSeconds != nil {
				rule.Duration = time.Duration(*o.DurationSeconds) * time.Second
			}
			if o.NaturalSpawn != nil {
				rule.NaturalSpawn = *o.NaturalSpawn
			}
			setInt(&rule.SwarmUnits, o.SwarmUnits)
			threats[kind] = rule
		}
		out.Threats = threats
	}
	return out, nil
}

func parseKeys(raw []string) (map[economy.ActionKey]bool, error) {
	out := make(map[economy.ActionKey]bool, len(raw))
	for _, s := range raw {
		k, err := economy.ParseActionKey(s)
		if err != nil {
			return nil, err
		}
		out[k] = true
	}
	return out, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
