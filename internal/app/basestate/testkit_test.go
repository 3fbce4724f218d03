package basestate

import (
	"context"
	"sync"
	"time"

	"reefbase/internal/app/ports"
)

type stubStateRepo struct {
	mu   sync.Mutex
	recs map[string]ports.BaseStateRecord
}

func newStubStateRepo() *stubStateRepo {
	return &stubStateRepo{recs: map[string]ports.BaseStateRecord{}}
}

func (r *stubStateRepo) GetByPlayerID(_ context.Context, playerID string) (ports.BaseStateRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[playerID]
	if !ok {
		return ports.BaseStateRecord{}, ports.ErrNotFound
	}
	return rec, nil
}

func (r *stubStateRepo) SaveIfUnchanged(_ context.Context, rec ports.BaseStateRecord, expected *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.recs[rec.PlayerID]
	if expected == nil && ok {
		return ports.ErrConflict
	}
	if expected != nil && (!ok || !cur.UpdatedAt.Equal(*expected)) {
		return ports.ErrConflict
	}
	r.recs[rec.PlayerID] = rec
	return nil
}

type identityCodec struct{}

func (identityCodec) Encode(raw []byte) ([]byte, string, error) {
	return append([]byte(nil), raw...), "digest", nil
}

func (identityCodec) Decode(payload []byte) ([]byte, error) { return payload, nil }

type denyGuard struct{}

func (denyGuard) Allow(string) bool { return false }

type saveCounter struct {
	mu       sync.Mutex
	outcomes map[ports.SaveOutcome]int
}

func (c *saveCounter) RecordSave(o ports.SaveOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = map[ports.SaveOutcome]int{}
	}
	c.outcomes[o]++
}
func (c *saveCounter) RecordAction(bool, string) {}
func (c *saveCounter) RecordBuild(bool)          {}
func (c *saveCounter) RecordCollect()            {}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var _ ports.BaseStateRepository = (*stubStateRepo)(nil)
var _ ports.BlobCodec = identityCodec{}
var _ ports.EconomyMetrics = (*saveCounter)(nil)
