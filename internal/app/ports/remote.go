package ports

import (
	"context"
	"encoding/json"
	"errors"

	"reefbase/internal/domain/economy"
)

// ErrTransient marks a failed round trip that is safe to retry later.
var ErrTransient = errors.New("transient network error")

type RemoteState struct {
	StateJSON json.RawMessage
	UpdatedAt *string
}

// StateRemote is the blob half of the Worker API. SaveState returns a
// *StaleStateError on 409, ErrThrottled on 429 and ErrTooLarge on 413.
type StateRemote interface {
	FetchState(ctx context.Context) (RemoteState, error)
	SaveState(ctx context.Context, stateJSON json.RawMessage, clientUpdatedAt *string) (string, error)
}

// RemoteBase is the server's answer to an authoritative mutation.
type RemoteBase struct {
	Resources economy.Resources
	Levels    map[economy.BuildingID]int
	Collected economy.Resources
	Charges   int
	Version   int64
}

type BaseRemote interface {
	Build(ctx context.Context, buildingType economy.BuildingID) (RemoteBase, error)
	Collect(ctx context.Context) (RemoteBase, error)
	UseAction(ctx context.Context, key economy.ActionKey) (RemoteBase, error)
	// Status reads the authoritative base without changing it.
	Status(ctx context.Context) (RemoteBase, error)
}
