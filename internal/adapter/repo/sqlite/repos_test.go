package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reefbase/internal/app/basestate"
	"reefbase/internal/app/playerbase"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "reef.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBaseStateRepo_CompareAndSwap(t *testing.T) {
	repo := NewBaseStateRepo(openTestDB(t))
	ctx := context.Background()
	t1 := time.UnixMilli(1_700_000_000_123).UTC()

	if _, err := repo.GetByPlayerID(ctx, "p1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.SaveIfUnchanged(ctx, ports.BaseStateRecord{PlayerID: "p1", Payload: []byte("v1"), Digest: "d1", Size: 2, UpdatedAt: t1}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.SaveIfUnchanged(ctx, ports.BaseStateRecord{PlayerID: "p1", Payload: []byte("x"), UpdatedAt: t1}, nil); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected insert conflict, got %v", err)
	}
	t2 := t1.Add(2 * time.Second)
	if err := repo.SaveIfUnchanged(ctx, ports.BaseStateRecord{PlayerID: "p1", Payload: []byte("v2"), Digest: "d2", Size: 2, UpdatedAt: t2}, &t1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.SaveIfUnchanged(ctx, ports.BaseStateRecord{PlayerID: "p1", Payload: []byte("stale"), UpdatedAt: t2}, &t1); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected stale conflict, got %v", err)
	}
	got, err := repo.GetByPlayerID(ctx, "p1")
	if err != nil || string(got.Payload) != "v2" || !got.UpdatedAt.Equal(t2) {
		t.Fatalf("unexpected record: %+v err=%v", got, err)
	}
}

func TestPlayerBaseRepo_RoundTripAndDebitGuard(t *testing.T) {
	repo := NewPlayerBaseRepo(openTestDB(t))
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()
	seed := playerbase.Seed("p1", now)
	seed.Mechanics.Perks = []economy.Perk{economy.PerkDeepStorage}
	if err := repo.SaveWithVersion(ctx, seed, 0, economy.Resources{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.SaveWithVersion(ctx, seed, 0, economy.Resources{}); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}

	next := seed
	next.Levels = map[economy.BuildingID]int{economy.BuildingShrine: 2}
	next.Resources.Cash = 100
	next.Version = 2
	if err := repo.SaveWithVersion(ctx, next, 1, economy.Resources{Cash: 601}); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected overdraft conflict, got %v", err)
	}
	if err := repo.SaveWithVersion(ctx, next, 1, economy.Resources{Cash: 500}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	got, err := repo.GetByPlayerID(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 || got.Resources.Cash != 100 || got.Levels[economy.BuildingShrine] != 2 {
		t.Fatalf("unexpected base: %+v", got)
	}
	if !got.Mechanics.HasPerk(economy.PerkDeepStorage) || !got.CreatedAt.Equal(now) {
		t.Fatalf("mechanics or timestamps lost: %+v", got)
	}
}

func TestTxManager_RollsBack(t *testing.T) {
	db := openTestDB(t)
	tx := NewTxManager(db)
	creds := NewPlayerCredentialRepo(db)
	events := NewEventRepo(db)
	ctx := context.Background()

	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := creds.Create(txCtx, ports.PlayerCredentialRecord{PlayerID: "p1", KeySalt: []byte("s"), KeyHash: []byte("h"), Status: "active", CreatedAt: time.Now()}); err != nil {
			return err
		}
		if err := events.Append(txCtx, "p1", []ports.BaseEvent{{Type: "base_build", OccurredAt: time.Now()}}); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	if err == nil {
		t.Fatalf("expected rollback error")
	}
	if _, err := creds.GetByPlayerID(ctx, "p1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("credential survived rollback: %v", err)
	}
	got, _ := events.ListByPlayerID(ctx, "p1", 0)
	if len(got) != 0 {
		t.Fatalf("events survived rollback: %+v", got)
	}
}

func TestEventRepo_NewestFirst(t *testing.T) {
	repo := NewEventRepo(openTestDB(t))
	ctx := context.Background()
	_ = repo.Append(ctx, "p1", []ports.BaseEvent{
		{Type: "base_build", OccurredAt: time.UnixMilli(1000), Payload: map[string]any{"level": 1}},
		{Type: "base_collect", OccurredAt: time.UnixMilli(2000)},
	})
	got, err := repo.ListByPlayerID(ctx, "p1", 1)
	if err != nil || len(got) != 1 || got[0].Type != "base_collect" {
		t.Fatalf("unexpected events: %+v err=%v", got, err)
	}
}

func TestBaseStateUseCase_OverSQLite(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uc := basestate.UseCase{
		Repo:  NewBaseStateRepo(openTestDB(t)),
		Codec: passthroughCodec{},
		Now:   func() time.Time { return clock },
	}
	ctx := context.Background()
	first, err := uc.Save(ctx, basestate.SaveRequest{PlayerID: "p1", StateJSON: []byte(`{"version":1}`)})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := uc.Save(ctx, basestate.SaveRequest{PlayerID: "p1", StateJSON: []byte(`{"version":1}`), ClientUpdatedAt: &first.UpdatedAt}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	_, err = uc.Save(ctx, basestate.SaveRequest{PlayerID: "p1", StateJSON: []byte(`{"version":1}`), ClientUpdatedAt: &first.UpdatedAt})
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected stale conflict, got %v", err)
	}
}

type passthroughCodec struct{}

func (passthroughCodec) Encode(raw []byte) ([]byte, string, error) { return raw, "", nil }
func (passthroughCodec) Decode(payload []byte) ([]byte, error)     { return payload, nil }
