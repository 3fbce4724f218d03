// Package baseaction runs building actions against the server-held base so that
// charges, cooldowns and balances cannot be forged by a client.
package baseaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"time"

	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

const (
	EventBaseAction = "base_action"
	maxAttempts     = 3
)

var (
	ErrInvalidRequest     = errors.New("invalid action request")
	ErrActionNotFound     = errors.New("action not found")
	ErrActionThrottled    = errors.New("action rate limited")
	ErrActionUnaffordable = errors.New("action unaffordable")
	ErrActionRejected     = errors.New("action rejected")
)

// ActionRejectedError carries the engine's reason code and retry hints.
type ActionRejectedError struct {
	Reason      string
	Message     string
	RemainingMs int64
	Charges     int
	Blocking    string
}

func (e *ActionRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *ActionRejectedError) Unwrap() error {
	switch {
	case e.Reason == economy.ReasonActionNotFound || e.Reason == economy.ReasonNotPlaced:
		return ErrActionNotFound
	case e.Reason == economy.ReasonCooldown || e.Reason == economy.ReasonNoCharges || e.Reason == economy.ReasonDailyCap:
		return ErrActionThrottled
	case e.Reason == economy.ReasonMonLocked || strings.HasPrefix(e.Reason, "NOT_ENOUGH_"):
		return ErrActionUnaffordable
	default:
		return ErrActionRejected
	}
}

type Request struct {
	PlayerID   string
	BuildingID string
	ActionID   string
}

type Response struct {
	Key             economy.ActionKey `json:"key"`
	Cost            economy.Resources `json:"cost"`
	Reward          economy.Resources `json:"reward"`
	TicketsCredited int               `json:"ticketsCredited"`
	Resources       economy.Resources `json:"resources"`
	Charges         int               `json:"charges"`
	Version         int64             `json:"version"`
}

type UseCase struct {
	Bases     ports.PlayerBaseRepository
	Events    ports.EventRepository
	TxManager ports.TxManager
	Metrics   ports.EconomyMetrics
	Catalog   economy.Catalog
	Rules     economy.Ruleset
	Rand      economy.RandSource
	Now       func() time.Time
}

// SharedRand draws from the process-wide math/rand source, which is safe for
// concurrent handlers.
type SharedRand struct{}

func (SharedRand) Float64() float64 { return rand.Float64() }
func (SharedRand) Intn(n int) int   { return rand.Intn(n) }

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	resp, err := u.execute(ctx, req)
	if u.Metrics != nil {
		reason := ""
		var rejected *ActionRejectedError
		if errors.As(err, &rejected) {
			reason = rejected.Reason
		}
		u.Metrics.RecordAction(err == nil, reason)
	}
	return resp, err
}

func (u UseCase) execute(ctx context.Context, req Request) (Response, error) {
	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" || u.Bases == nil || u.TxManager == nil {
		return Response{}, ErrInvalidRequest
	}
	key := economy.ActionKey{
		Building: economy.BuildingID(strings.TrimSpace(req.BuildingID)),
		Action:   economy.ActionID(strings.TrimSpace(req.ActionID)),
	}
	if _, ok := u.Catalog.Action(key); !ok {
		return Response{}, &ActionRejectedError{Reason: economy.ReasonActionNotFound, Message: fmt.Sprintf("unknown action %s", key)}
	}
	nowFn := u.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	rng := u.Rand
	if rng == nil {
		rng = SharedRand{}
	}
	engine := economy.NewEngine(u.Catalog, u.Rules, rng)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		base, err := u.Bases.GetByPlayerID(ctx, playerID)
		if err != nil {
			return Response{}, err
		}
		tier := base.Levels[key.Building]
		if tier <= 0 {
			return Response{}, &ActionRejectedError{Reason: economy.ReasonNotPlaced, Message: fmt.Sprintf("%s is not built", key.Building)}
		}

		now := nowFn().UTC()
		result := engine.TryUseAction(economy.ActionRequest{
			NowMs:     now.UnixMilli(),
			DayIndex:  playerbase.DayIndex(base, now),
			Key:       key,
			Tier:      tier,
			Resources: base.Resources,
			Mechanics: base.Mechanics,
			Caps:      playerbase.Caps(u.Catalog, u.Rules, base),
		})

		// Failed attempts may still have spent a charge or taken a jam penalty.
		mutated := result.Resources != base.Resources || !reflect.DeepEqual(result.Mechanics, base.Mechanics)
		if !result.OK && !mutated {
			return Response{}, rejection(result)
		}

		next := base
		next.Resources = result.Resources
		next.Mechanics = result.Mechanics
		next.UpdatedAt = now
		next.Version = base.Version + 1

		err = u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := u.Bases.SaveWithVersion(txCtx, next, base.Version, debit(base.Resources, result.Resources)); err != nil {
				return err
			}
			if u.Events == nil || !result.OK {
				return nil
			}
			return u.Events.Append(txCtx, playerID, []ports.BaseEvent{{
				Type:       EventBaseAction,
				OccurredAt: now,
				Payload: map[string]any{
					"action": key.String(),
					"tier":   tier,
					"cost":   result.Cost.Map(),
					"reward": result.Reward.Map(),
				},
			}})
		})
		if errors.Is(err, ports.ErrConflict) {
			continue
		}
		if err != nil {
			return Response{}, err
		}
		if !result.OK {
			return Response{}, rejection(result)
		}
		return Response{
			Key:             key,
			Cost:            result.Cost,
			Reward:          result.Reward,
			TicketsCredited: result.TicketsCredited,
			Resources:       result.Resources,
			Charges:         result.Charges,
			Version:         next.Version,
		}, nil
	}
	return Response{}, ports.ErrConflict
}

func rejection(r economy.ActionResult) *ActionRejectedError {
	return &ActionRejectedError{
		Reason:      r.Reason,
		Message:     r.Message,
		RemainingMs: r.RemainingMs,
		Charges:     r.Charges,
		Blocking:    r.Blocking,
	}
}

// debit is what the write removes from each balance; the repository re-checks it.
func debit(before, after economy.Resources) economy.Resources {
	var out economy.Resources
	for _, k := range economy.AllResources {
		if d := before.Get(k) - after.Get(k); d > 0 {
			out.Set(k, d)
		}
	}
	return out
}
