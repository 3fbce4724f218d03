package ports

import (
	"context"
	"time"

	"reefbase/internal/domain/economy"
)

// BaseStateRecord is one stored snapshot blob. Payload is codec-encoded; Digest is
// computed over the decoded JSON.
type BaseStateRecord struct {
	PlayerID  string
	Payload   []byte
	Digest    string
	Size      int
	UpdatedAt time.Time
}

type BaseStateRepository interface {
	GetByPlayerID(ctx context.Context, playerID string) (BaseStateRecord, error)
	// SaveIfUnchanged inserts when expected is nil, otherwise updates only if the stored
	// updatedAt equals expected. Any mismatch returns ErrConflict.
	SaveIfUnchanged(ctx context.Context, rec BaseStateRecord, expected *time.Time) error
}

// PlayerBase is the server-authoritative economy row for one player.
type PlayerBase struct {
	PlayerID        string
	Resources       economy.Resources
	Levels          map[economy.BuildingID]int
	Mechanics       economy.MechanicsState
	LastCollectedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

type PlayerBaseRepository interface {
	GetByPlayerID(ctx context.Context, playerID string) (PlayerBase, error)
	// SaveWithVersion writes base only if the stored version equals expectedVersion and
	// every stored balance covers debit. Zero affected rows returns ErrConflict.
	// expectedVersion 0 inserts a new row.
	SaveWithVersion(ctx context.Context, base PlayerBase, expectedVersion int64, debit economy.Resources) error
}

type BaseEvent struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type EventRepository interface {
	Append(ctx context.Context, playerID string, events []BaseEvent) error
	ListByPlayerID(ctx context.Context, playerID string, limit int) ([]BaseEvent, error)
}

type PlayerCredentialRecord struct {
	PlayerID  string
	KeySalt   []byte
	KeyHash   []byte
	Status    string
	CreatedAt time.Time
}

type PlayerCredentialRepository interface {
	Create(ctx context.Context, credential PlayerCredentialRecord) error
	GetByPlayerID(ctx context.Context, playerID string) (PlayerCredentialRecord, error)
}

// BlobCodec compresses snapshot JSON for storage.
type BlobCodec interface {
	Encode(raw []byte) (payload []byte, digest string, err error)
	Decode(payload []byte) ([]byte, error)
}

// WriteGuard throttles blob saves per player.
type WriteGuard interface {
	Allow(playerID string) bool
}
