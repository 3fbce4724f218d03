package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	// DefaultMaxWait bounds how long a steady stream of changes can hold off a
	// save. It stays above the server's save cooldown.
	DefaultMaxWait = 5 * time.Second
)

// StateHolder is the part of a session the synchronizer reads and replaces.
type StateHolder interface {
	Snapshot(now time.Time) economy.BaseSnapshot
	Replace(snap economy.BaseSnapshot, now time.Time)
}

// Synchronizer pushes the base blob to the server after a quiet period. A
// rejected write is never merged: on conflict the local state is dropped and
// the server copy is loaded instead.
type Synchronizer struct {
	remote   ports.StateRemote
	holder   StateHolder
	debounce time.Duration
	maxWait  time.Duration
	now      func() time.Time

	signal chan struct{}

	mu        stdsync.Mutex
	dirty     bool
	updatedAt *string
}

func New(remote ports.StateRemote, holder StateHolder, debounce time.Duration) *Synchronizer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Synchronizer{
		remote:   remote,
		holder:   holder,
		debounce: debounce,
		maxWait:  DefaultMaxWait,
		now:      time.Now,
		signal:   make(chan struct{}, 1),
	}
}

// MarkDirty schedules a save. It never blocks and may be called from any goroutine.
func (s *Synchronizer) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// UpdatedAt is the token of the last blob this client saw from the server.
func (s *Synchronizer) UpdatedAt() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updatedAt == nil {
		return nil
	}
	v := *s.updatedAt
	return &v
}

// Load fetches the server blob and replaces local state with it. A player
// without a blob keeps the local state and saves it on the next flush.
func (s *Synchronizer) Load(ctx context.Context) error {
	remote, err := s.remote.FetchState(ctx)
	if err != nil {
		return fmt.Errorf("fetch base state: %w", err)
	}
	if len(remote.StateJSON) == 0 || string(remote.StateJSON) == "null" {
		s.mu.Lock()
		s.updatedAt = nil
		s.mu.Unlock()
		return nil
	}
	var snap economy.BaseSnapshot
	if err := json.Unmarshal(remote.StateJSON, &snap); err != nil {
		return fmt.Errorf("decode base state: %w", err)
	}
	s.holder.Replace(snap, s.now())

	s.mu.Lock()
	s.updatedAt = remote.UpdatedAt
	s.mu.Unlock()
	return nil
}

// Flush saves immediately if there are pending changes.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	token := s.updatedAt
	s.mu.Unlock()

	raw, err := json.Marshal(s.holder.Snapshot(s.now()))
	if err != nil {
		return fmt.Errorf("encode base state: %w", err)
	}
	updatedAt, err := s.remote.SaveState(ctx, raw, token)
	if err == nil {
		s.mu.Lock()
		s.updatedAt = &updatedAt
		s.mu.Unlock()
		return nil
	}

	var stale *ports.StaleStateError
	switch {
	case errors.As(err, &stale):
		hlog.CtxInfof(ctx, "base save conflict, reloading server state updated_at=%s", stale.UpdatedAt)
		if lerr := s.Load(ctx); lerr != nil {
			hlog.CtxWarnf(ctx, "reload after conflict failed: %v", lerr)
			s.redirty()
			return lerr
		}
		return err
	case errors.Is(err, ports.ErrTooLarge):
		hlog.CtxErrorf(ctx, "base state rejected as too large: %v", err)
		return err
	default:
		hlog.CtxWarnf(ctx, "base save failed, retrying next cycle: %v", err)
		s.redirty()
		return err
	}
}

func (s *Synchronizer) redirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Run flushes after every quiet period until ctx is cancelled. A pending change
// is flushed no later than maxWait after it was first marked, even if changes
// keep arriving. Failed retryable saves are rescheduled one debounce later.
func (s *Synchronizer) Run(ctx context.Context) error {
	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()
	var (
		fire     <-chan time.Time
		deadline time.Time
	)
	arm := func(d time.Duration) {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
		fire = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.signal:
			if fire == nil {
				deadline = time.Now().Add(s.maxWait)
			}
			wait := s.debounce
			if left := time.Until(deadline); left < wait {
				wait = left
			}
			arm(wait)
		case <-fire:
			fire = nil
			if err := s.Flush(ctx); err != nil && s.Dirty() {
				deadline = time.Now().Add(s.maxWait)
				arm(s.debounce)
			}
		}
	}
}
