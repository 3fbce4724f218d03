package status

import (
	"context"
	"errors"
	"strings"
	"time"

	"reefbase/internal/app/collect"
	"reefbase/internal/app/cooldown"
	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

var ErrInvalidRequest = errors.New("invalid status request")

// UseCase is a read-only view of the authoritative base. It never writes, so
// accrued charges shown here are recomputed on every call.
type UseCase struct {
	Bases   ports.PlayerBaseRepository
	Catalog economy.Catalog
	Rules   economy.Ruleset
	Now     func() time.Time
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return Response{}, ErrInvalidRequest
	}
	base, err := u.Bases.GetByPlayerID(ctx, req.PlayerID)
	if err != nil {
		return Response{}, err
	}
	nowFn := u.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()
	nowMs := now.UnixMilli()

	engine := economy.NewEngine(u.Catalog, u.Rules, nil)
	dayIndex := playerbase.DayIndex(base, now)
	actions := make([]economy.ActionStatus, 0)
	for _, def := range u.Catalog.Buildings() {
		tier := base.Levels[def.ID]
		if tier <= 0 {
			continue
		}
		for _, tpl := range def.Actions {
			st, ok := engine.ActionStatus(economy.ActionKey{Building: def.ID, Action: tpl.ID}, tier, nowMs, dayIndex, base.Resources, base.Mechanics)
			if ok {
				actions = append(actions, st)
			}
		}
	}

	elapsed := now.Sub(base.LastCollectedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return Response{
		Base:      playerbase.NewView(u.Catalog, u.Rules, base, now),
		Actions:   actions,
		Cooldowns: cooldown.RemainingByAction(actions),
		Debuffs:   base.Mechanics.ActiveDebuffs(nowMs),
		Modifiers: economy.GetThreatModifiers(u.Rules, base.Mechanics, nowMs),
		Window: CollectWindow{
			ElapsedSecs: elapsed.Seconds(),
			LimitSecs:   collect.Window(base.Levels).Seconds(),
		},
	}, nil
}
