package basebuild

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

const (
	EventBaseBuild = "base_build"
	maxAttempts    = 3
)

var (
	ErrInvalidRequest    = errors.New("invalid build request")
	ErrUnknownBuilding   = errors.New("unknown building type")
	ErrMaxLevel          = errors.New("building is at max level")
	ErrNoFreeSlot        = errors.New("no free building slot")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

type InsufficientFundsError struct {
	Blocking string
	Reason   string
	Cost     economy.Resources
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s", e.Reason)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

type Request struct {
	PlayerID     string
	BuildingType string
}

type Response struct {
	Base       playerbase.View    `json:"base"`
	BuildingID economy.BuildingID `json:"buildingId"`
	Level      int                `json:"level"`
	Cost       economy.Resources  `json:"cost"`
	Resources  economy.Resources  `json:"resources"`
	Version    int64              `json:"version"`
}

type UseCase struct {
	Bases     ports.PlayerBaseRepository
	Events    ports.EventRepository
	TxManager ports.TxManager
	Metrics   ports.EconomyMetrics
	Catalog   economy.Catalog
	Rules     economy.Ruleset
	Slots     int
	Now       func() time.Time
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	resp, err := u.execute(ctx, req)
	if u.Metrics != nil {
		u.Metrics.RecordBuild(err == nil)
	}
	return resp, err
}

func (u UseCase) execute(ctx context.Context, req Request) (Response, error) {
	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" || u.Bases == nil || u.TxManager == nil {
		return Response{}, ErrInvalidRequest
	}
	def, ok := u.Catalog.Building(economy.BuildingID(strings.TrimSpace(req.BuildingType)))
	if !ok {
		return Response{}, ErrUnknownBuilding
	}
	nowFn := u.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	slots := u.Slots
	if slots <= 0 {
		slots = len(economy.DefaultCells())
	}

	// A lost race re-reads the row and re-decides from the fresh balances.
	for attempt := 0; attempt < maxAttempts; attempt++ {
		base, err := u.Bases.GetByPlayerID(ctx, playerID)
		if err != nil {
			return Response{}, err
		}
		level := base.Levels[def.ID]
		if level >= economy.MaxTier {
			return Response{}, ErrMaxLevel
		}
		if level == 0 && placedCount(base.Levels) >= slots {
			return Response{}, ErrNoFreeSlot
		}

		now := nowFn().UTC()
		cost := def.Tier(level + 1).Cost
		remaining, afford := economy.Spend(u.Rules, base.Resources, cost, playerbase.DayIndex(base, now))
		if !afford.OK {
			return Response{}, &InsufficientFundsError{Blocking: afford.Blocking.String(), Reason: afford.Reason, Cost: cost}
		}

		next := base
		next.Levels = playerbase.CloneLevels(base.Levels)
		next.Levels[def.ID] = level + 1
		next.Resources = remaining
		next.UpdatedAt = now
		next.Version = base.Version + 1

		err = u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := u.Bases.SaveWithVersion(txCtx, next, base.Version, cost); err != nil {
				return err
			}
			if u.Events == nil {
				return nil
			}
			return u.Events.Append(txCtx, playerID, []ports.BaseEvent{{
				Type:       EventBaseBuild,
				OccurredAt: now,
				Payload: map[string]any{
					"building_id": string(def.ID),
					"level":       level + 1,
					"cost":        cost.Map(),
				},
			}})
		})
		if errors.Is(err, ports.ErrConflict) {
			continue
		}
		if err != nil {
			return Response{}, err
		}
		return Response{
			Base:       playerbase.NewView(u.Catalog, u.Rules, next, now),
			BuildingID: def.ID,
			Level:      level + 1,
			Cost:       cost,
			Resources:  remaining,
			Version:    next.Version,
		}, nil
	}
	return Response{}, ports.ErrConflict
}

func placedCount(levels map[economy.BuildingID]int) int {
	n := 0
	for _, tier := range levels {
		if tier > 0 {
			n++
		}
	}
	return n
}
