package basestate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"reefbase/internal/app/ports"
)

const DefaultMaxChars = 200_000

var (
	ErrInvalidRequest = errors.New("invalid base state request")
	ErrInvalidState   = errors.New("invalid base state payload")
)

type TooLargeError struct {
	Size  int
	Limit int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("state is %d characters, limit is %d", e.Size, e.Limit)
}

func (e *TooLargeError) Unwrap() error {
	return ports.ErrTooLarge
}

type GetRequest struct {
	PlayerID string
}

type GetResponse struct {
	StateJSON json.RawMessage `json:"stateJson"`
	UpdatedAt *string         `json:"updatedAt"`
	Digest    string          `json:"digest,omitempty"`
}

type SaveRequest struct {
	PlayerID        string
	StateJSON       json.RawMessage
	ClientUpdatedAt *string
}

type SaveResponse struct {
	OK        bool   `json:"ok"`
	UpdatedAt string `json:"updatedAt"`
	Digest    string `json:"digest"`
}

type UseCase struct {
	Repo     ports.BaseStateRepository
	Codec    ports.BlobCodec
	Guard    ports.WriteGuard
	Schema   StateValidator
	Metrics  ports.EconomyMetrics
	MaxChars int
	Now      func() time.Time
}

func FormatUpdatedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ParseUpdatedAt(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: updatedAt %q", ErrInvalidRequest, s)
	}
	return t.UTC().Truncate(time.Millisecond), nil
}

func (u UseCase) Get(ctx context.Context, req GetRequest) (GetResponse, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return GetResponse{}, ErrInvalidRequest
	}
	rec, err := u.Repo.GetByPlayerID(ctx, req.PlayerID)
	if errors.Is(err, ports.ErrNotFound) {
		return GetResponse{StateJSON: json.RawMessage("null")}, nil
	}
	if err != nil {
		return GetResponse{}, err
	}
	raw, err := u.Codec.Decode(rec.Payload)
	if err != nil {
		return GetResponse{}, fmt.Errorf("decode base state: %w", err)
	}
	updatedAt := FormatUpdatedAt(rec.UpdatedAt)
	return GetResponse{StateJSON: raw, UpdatedAt: &updatedAt, Digest: rec.Digest}, nil
}

func (u UseCase) Save(ctx context.Context, req SaveRequest) (SaveResponse, error) {
	resp, outcome, err := u.save(ctx, req)
	if u.Metrics != nil {
		u.Metrics.RecordSave(outcome)
	}
	return resp, err
}

func (u UseCase) save(ctx context.Context, req SaveRequest) (SaveResponse, ports.SaveOutcome, error) {
	raw := bytes.TrimSpace(req.StateJSON)
	if strings.TrimSpace(req.PlayerID) == "" || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return SaveResponse{}, ports.SaveInvalid, ErrInvalidRequest
	}
	limit := u.MaxChars
	if limit <= 0 {
		limit = DefaultMaxChars
	}
	if n := utf8.RuneCount(raw); n > limit {
		return SaveResponse{}, ports.SaveTooLarge, &TooLargeError{Size: n, Limit: limit}
	}
	if u.Guard != nil && !u.Guard.Allow(req.PlayerID) {
		return SaveResponse{}, ports.SaveThrottled, ports.ErrThrottled
	}
	if err := u.validate(raw); err != nil {
		return SaveResponse{}, ports.SaveInvalid, err
	}

	var expected *time.Time
	if req.ClientUpdatedAt != nil && strings.TrimSpace(*req.ClientUpdatedAt) != "" {
		t, err := ParseUpdatedAt(*req.ClientUpdatedAt)
		if err != nil {
			return SaveResponse{}, ports.SaveInvalid, err
		}
		expected = &t
	}

	current, err := u.Repo.GetByPlayerID(ctx, req.PlayerID)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		if expected != nil {
			return SaveResponse{}, ports.SaveConflict, &ports.StaleStateError{}
		}
	case err != nil:
		return SaveResponse{}, "", err
	default:
		if expected == nil || !expected.Equal(current.UpdatedAt.UTC().Truncate(time.Millisecond)) {
			return SaveResponse{}, ports.SaveConflict, &ports.StaleStateError{UpdatedAt: FormatUpdatedAt(current.UpdatedAt)}
		}
	}

	nowFn := u.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	stamp := nowFn().UTC().Truncate(time.Millisecond)
	if expected != nil && !stamp.After(*expected) {
		stamp = expected.Add(time.Millisecond)
	}

	payload, digest, err := u.Codec.Encode(raw)
	if err != nil {
		return SaveResponse{}, "", fmt.Errorf("encode base state: %w", err)
	}
	err = u.Repo.SaveIfUnchanged(ctx, ports.BaseStateRecord{
		PlayerID:  req.PlayerID,
		Payload:   payload,
		Digest:    digest,
		Size:      len(raw),
		UpdatedAt: stamp,
	}, expected)
	if errors.Is(err, ports.ErrConflict) {
		stale := &ports.StaleStateError{}
		if latest, getErr := u.Repo.GetByPlayerID(ctx, req.PlayerID); getErr == nil {
			stale.UpdatedAt = FormatUpdatedAt(latest.UpdatedAt)
		}
		return SaveResponse{}, ports.SaveConflict, stale
	}
	if err != nil {
		return SaveResponse{}, "", err
	}
	return SaveResponse{OK: true, UpdatedAt: FormatUpdatedAt(stamp), Digest: digest}, ports.SaveAccepted, nil
}

func (u UseCase) validate(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if u.Schema == nil {
		return nil
	}
	if err := u.Schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}
