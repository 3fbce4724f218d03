package status

import (
	"reefbase/internal/app/playerbase"
	"reefbase/internal/domain/economy"
)

type Request struct {
	PlayerID string
}

type Response struct {
	Base      playerbase.View         `json:"base"`
	Actions   []economy.ActionStatus  `json:"actions"`
	Cooldowns map[string]int          `json:"cooldowns"`
	Debuffs   []economy.Debuff        `json:"debuffs"`
	Modifiers economy.ThreatModifiers `json:"modifiers"`
	Window    CollectWindow           `json:"collectWindow"`
}

type CollectWindow struct {
	ElapsedSecs float64 `json:"elapsedSecs"`
	LimitSecs   float64 `json:"limitSecs"`
}
