package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"reefbase/internal/app/auth"
	"reefbase/internal/app/baseaction"
	"reefbase/internal/app/basebuild"
	"reefbase/internal/app/basestate"
	"reefbase/internal/app/collect"
	"reefbase/internal/app/cooldown"
	"reefbase/internal/app/ports"
	"reefbase/internal/app/replay"
	"reefbase/internal/app/status"
	"reefbase/internal/domain/economy"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const playerIDHeader = "X-Player-ID"
const playerKeyHeader = "X-Player-Key"

type Handler struct {
	RegisterUC auth.RegisterUseCase
	AuthUC     auth.VerifyUseCase
	StateUC    basestate.UseCase
	BuildUC    basebuild.UseCase
	CollectUC  collect.UseCase
	ActionUC   baseaction.UseCase
	StatusUC   status.UseCase
	ReplayUC   replay.UseCase
	KPI        kpiSnapshotProvider

	// SaveCooldown feeds the Retry-After header on throttled saves.
	SaveCooldown time.Duration
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware())

	base := s.Group("/base")
	base.GET("/state", h.getState)
	base.POST("/state", h.saveState)
	base.POST("/build", h.build)
	base.POST("/collect", h.collect)
	base.POST("/action", h.action)
	base.GET("/status", h.status)
	base.GET("/events", h.events)

	s.POST("/player/register", h.register)
	s.GET("/ops/kpi", h.kpi)
}

type saveStateRequest struct {
	StateJSON       json.RawMessage `json:"stateJson"`
	ClientUpdatedAt *string         `json:"clientUpdatedAt"`
}

type buildRequest struct {
	BuildingType string `json:"buildingType"`
}

type actionRequest struct {
	BuildingID string `json:"buildingId"`
	ActionID   string `json:"actionId"`
}

func (h Handler) getState(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.StateUC.Get(c, basestate.GetRequest{PlayerID: playerID})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) saveState(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}

	var body saveStateRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	resp, err := h.StateUC.Save(c, basestate.SaveRequest{
		PlayerID:        playerID,
		StateJSON:       body.StateJSON,
		ClientUpdatedAt: body.ClientUpdatedAt,
	})
	if err != nil {
		if errors.Is(err, ports.ErrThrottled) {
			ctx.Response.Header.Set("Retry-After", cooldown.RetryAfter(h.SaveCooldown.Milliseconds()))
		}
		var stale *ports.StaleStateError
		if errors.As(err, &stale) {
			hlog.CtxInfof(c, "stale base save player=%s server_updated_at=%s", playerID, stale.UpdatedAt)
		}
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) build(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}

	var body buildRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	resp, err := h.BuildUC.Execute(c, basebuild.Request{PlayerID: playerID, BuildingType: body.BuildingType})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) collect(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.CollectUC.Execute(c, collect.Request{PlayerID: playerID})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) action(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}

	var body actionRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	resp, err := h.ActionUC.Execute(c, baseaction.Request{
		PlayerID:   playerID,
		BuildingID: body.BuildingID,
		ActionID:   body.ActionID,
	})
	if err != nil {
		if writeActionRejectedFromErr(ctx, err) {
			return
		}
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) status(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.StatusUC.Execute(c, status.Request{PlayerID: playerID})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) events(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	limit, _ := strconv.Atoi(string(ctx.Query("limit")))
	occurredFrom, _ := strconv.ParseInt(string(ctx.Query("occurred_from")), 10, 64)
	occurredTo, _ := strconv.ParseInt(string(ctx.Query("occurred_to")), 10, 64)
	resp, err := h.ReplayUC.Execute(c, replay.Request{
		PlayerID:     playerID,
		Limit:        limit,
		OccurredFrom: occurredFrom,
		OccurredTo:   occurredTo,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) register(c context.Context, ctx *app.RequestContext) {
	resp, err := h.RegisterUC.Execute(c, auth.RegisterRequest{})
	if err != nil {
		writeError(ctx, err)
		return
	}
	hlog.CtxInfof(c, "registered player=%s", resp.PlayerID)
	ctx.JSON(consts.StatusCreated, resp)
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

var ErrMissingPlayerIDHeader = errors.New("missing x-player-id header")
var ErrMissingPlayerKeyHeader = errors.New("missing x-player-key header")
var ErrMissingPlayerCredentials = errors.New("missing player credentials")

func (h Handler) requireAuthenticatedPlayer(c context.Context, ctx *app.RequestContext) (string, error) {
	playerID := strings.TrimSpace(string(ctx.GetHeader(playerIDHeader)))
	playerKey := strings.TrimSpace(string(ctx.GetHeader(playerKeyHeader)))
	if playerID == "" && playerKey == "" {
		return "", ErrMissingPlayerCredentials
	}
	if playerID == "" {
		return "", ErrMissingPlayerIDHeader
	}
	if playerKey == "" {
		return "", ErrMissingPlayerKeyHeader
	}
	if err := h.AuthUC.Execute(c, auth.VerifyRequest{
		PlayerID:  playerID,
		PlayerKey: playerKey,
	}); err != nil {
		return "", err
	}
	return playerID, nil
}

func writeError(ctx *app.RequestContext, err error) {
	var stale *ports.StaleStateError
	var tooLarge *basestate.TooLargeError
	var funds *basebuild.InsufficientFundsError
	switch {
	case errors.Is(err, ErrMissingPlayerCredentials):
		writeErrorBody(ctx, consts.StatusBadRequest, "missing_player_credentials", err.Error())
	case errors.Is(err, ErrMissingPlayerIDHeader):
		writeErrorBody(ctx, consts.StatusBadRequest, "missing_player_id", err.Error())
	case errors.Is(err, ErrMissingPlayerKeyHeader):
		writeErrorBody(ctx, consts.StatusBadRequest, "missing_player_key", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErrorBody(ctx, consts.StatusUnauthorized, "invalid_player_credentials", err.Error())
	case errors.As(err, &stale):
		ctx.JSON(consts.StatusConflict, map[string]any{
			"error": map[string]any{
				"code":    "stale_state",
				"message": err.Error(),
				"details": map[string]any{"updatedAt": stale.UpdatedAt},
			},
			"updatedAt": stale.UpdatedAt,
		})
	case errors.As(err, &tooLarge):
		writeErrorDetails(ctx, consts.StatusRequestEntityTooLarge, "state_too_large", err.Error(), map[string]any{
			"size":  tooLarge.Size,
			"limit": tooLarge.Limit,
		})
	case errors.Is(err, ports.ErrThrottled):
		writeErrorBody(ctx, consts.StatusTooManyRequests, "save_throttled", "saving too fast, retry shortly")
	case errors.As(err, &funds):
		writeErrorDetails(ctx, consts.StatusBadRequest, "insufficient_funds", err.Error(), map[string]any{
			"blocking": funds.Blocking,
			"reason":   funds.Reason,
			"cost":     funds.Cost,
		})
	case errors.Is(err, basebuild.ErrMaxLevel):
		writeErrorBody(ctx, consts.StatusBadRequest, "max_level", err.Error())
	case errors.Is(err, basebuild.ErrNoFreeSlot):
		writeErrorBody(ctx, consts.StatusBadRequest, "no_free_slot", err.Error())
	case errors.Is(err, basebuild.ErrUnknownBuilding):
		writeErrorBody(ctx, consts.StatusNotFound, "unknown_building", err.Error())
	case errors.Is(err, baseaction.ErrActionNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, economy.ReasonActionNotFound, err.Error())
	case errors.Is(err, basestate.ErrInvalidState):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, basestate.ErrInvalidRequest),
		errors.Is(err, basebuild.ErrInvalidRequest),
		errors.Is(err, baseaction.ErrInvalidRequest),
		errors.Is(err, collect.ErrInvalidRequest),
		errors.Is(err, auth.ErrInvalidRequest),
		errors.Is(err, replay.ErrInvalidRequest),
		errors.Is(err, status.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrConflict):
		writeErrorBody(ctx, consts.StatusConflict, "conflict", err.Error())
	default:
		hlog.Errorf("unhandled request error: %v", err)
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeErrorDetails(ctx *app.RequestContext, status int, code, message string, details map[string]any) {
	ctx.JSON(status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeActionRejectedFromErr renders engine rejections with their reason code so
// clients can show the same message the local engine would.
func writeActionRejectedFromErr(ctx *app.RequestContext, err error) bool {
	var rejected *baseaction.ActionRejectedError
	if !errors.As(err, &rejected) || rejected == nil {
		return false
	}
	details := map[string]any{"reason": rejected.Reason}
	if rejected.RemainingMs > 0 {
		details["remaining_seconds"] = cooldown.RemainingSeconds(rejected.RemainingMs)
	}
	if rejected.Charges > 0 || rejected.Reason == economy.ReasonNoCharges {
		details["charges"] = rejected.Charges
	}
	if rejected.Blocking != "" {
		details["blocking"] = rejected.Blocking
	}

	switch {
	case errors.Is(err, baseaction.ErrActionNotFound):
		writeActionRejected(ctx, consts.StatusNotFound, rejected.Reason, rejected.Message, false, details)
	case errors.Is(err, baseaction.ErrActionThrottled):
		if secs, ok := details["remaining_seconds"].(int); ok {
			ctx.Response.Header.Set("Retry-After", strconv.Itoa(secs))
		}
		writeActionRejected(ctx, consts.StatusConflict, rejected.Reason, rejected.Message, true, details)
	case errors.Is(err, baseaction.ErrActionUnaffordable):
		writeActionRejected(ctx, consts.StatusBadRequest, rejected.Reason, rejected.Message, false, details)
	default:
		writeActionRejected(ctx, consts.StatusConflict, rejected.Reason, rejected.Message, rejected.Reason == economy.ReasonJammed, details)
	}
	return true
}

func writeActionRejected(ctx *app.RequestContext, status int, code, message string, retryable bool, details map[string]any) {
	ctx.JSON(status, map[string]any{
		"result_code": "REJECTED",
		"error": map[string]any{
			"code":      code,
			"message":   message,
			"retryable": retryable,
			"details":   details,
		},
	})
}
