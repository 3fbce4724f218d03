package replay

import (
	"context"
	"errors"
	"strings"

	"reefbase/internal/app/ports"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrInvalidRequest = errors.New("invalid replay request")

type UseCase struct {
	Events ports.EventRepository
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return Response{}, ErrInvalidRequest
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	events, err := u.Events.ListByPlayerID(ctx, req.PlayerID, limit)
	if err != nil {
		return Response{}, err
	}
	events = filterByTimeWindow(events, req.OccurredFrom, req.OccurredTo)
	return Response{Events: events, Latest: summarize(events)}, nil
}

func filterByTimeWindow(events []ports.BaseEvent, from, to int64) []ports.BaseEvent {
	if from <= 0 && to <= 0 {
		return events
	}
	out := make([]ports.BaseEvent, 0, len(events))
	for _, evt := range events {
		ts := evt.OccurredAt.Unix()
		if from > 0 && ts < from {
			continue
		}
		if to > 0 && ts > to {
			continue
		}
		out = append(out, evt)
	}
	return out
}

func summarize(events []ports.BaseEvent) Summary {
	s := Summary{Levels: map[string]int{}, Collected: map[string]float64{}}
	for _, evt := range events {
		switch evt.Type {
		case "base_build":
			id, _ := evt.Payload["building_id"].(string)
			if lvl := int(num(evt.Payload["level"])); id != "" && lvl > s.Levels[id] {
				s.Levels[id] = lvl
			}
		case "base_collect":
			for k, v := range asMap(evt.Payload["collected"]) {
				s.Collected[k] += num(v)
			}
		case "base_action":
			s.Actions++
		}
	}
	return s
}

// asMap accepts both freshly built payloads and ones decoded from JSON.
func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[string]float64:
		out := make(map[string]any, len(m))
		for k, f := range m {
			out[k] = f
		}
		return out
	default:
		return nil
	}
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
