package collect

import (
	"context"
	"errors"
	"strings"
	"time"

	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

const (
	EventBaseCollect = "base_collect"
	BaseWindow       = 4 * time.Hour
	SiloWindowBonus  = 2 * time.Hour
	maxAttempts      = 3
)

var ErrInvalidRequest = errors.New("invalid collect request")

type Request struct {
	PlayerID string
}

type Response struct {
	Base        playerbase.View   `json:"base"`
	Collected   economy.Resources `json:"collected"`
	Resources   economy.Resources `json:"resources"`
	ElapsedSecs float64           `json:"elapsedSecs"`
	Capped      bool              `json:"capped"`
	Version     int64             `json:"version"`
}

type UseCase struct {
	Bases     ports.PlayerBaseRepository
	Events    ports.EventRepository
	TxManager ports.TxManager
	Metrics   ports.EconomyMetrics
	Catalog   economy.Catalog
	Rules     economy.Ruleset
	Now       func() time.Time
}

// Window is how much offline production a base can bank between collects.
func Window(levels map[economy.BuildingID]int) time.Duration {
	return BaseWindow + time.Duration(levels[economy.BuildingStorageSilo])*SiloWindowBonus
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" || u.Bases == nil || u.TxManager == nil {
		return Response{}, ErrInvalidRequest
	}
	nowFn := u.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		base, err := u.Bases.GetByPlayerID(ctx, playerID)
		if err != nil {
			return Response{}, err
		}
		now := nowFn().UTC()
		elapsed := now.Sub(base.LastCollectedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		window := Window(base.Levels)
		capped := elapsed > window
		if capped {
			elapsed = window
		}

		placements := playerbase.Placements(u.Catalog, base.Levels)
		ledger := economy.NewLedger(u.Catalog, u.Rules, placements, base.Mechanics.Perks)
		mods := economy.TickModifiersFor(u.Rules, base.Mechanics, now.UnixMilli())
		after := ledger.Tick(base.Resources, elapsed, mods)
		collected := after.Sub(base.Resources)

		next := base
		next.Resources = after
		next.LastCollectedAt = now
		next.UpdatedAt = now
		next.Version = base.Version + 1

		err = u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := u.Bases.SaveWithVersion(txCtx, next, base.Version, economy.Resources{}); err != nil {
				return err
			}
			if u.Events == nil || collected.IsZero() {
				return nil
			}
			return u.Events.Append(txCtx, playerID, []ports.BaseEvent{{
				Type:       EventBaseCollect,
				OccurredAt: now,
				Payload: map[string]any{
					"collected":    collected.Map(),
					"elapsed_secs": elapsed.Seconds(),
				},
			}})
		})
		if errors.Is(err, ports.ErrConflict) {
			continue
		}
		if err != nil {
			return Response{}, err
		}
		if u.Metrics != nil {
			u.Metrics.RecordCollect()
		}
		return Response{
			Base:        playerbase.NewView(u.Catalog, u.Rules, next, now),
			Collected:   collected,
			Resources:   after,
			ElapsedSecs: elapsed.Seconds(),
			Capped:      capped,
			Version:     next.Version,
		}, nil
	}
	return Response{}, ports.ErrConflict
}
