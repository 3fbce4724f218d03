package sqliterepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"
)

type BaseStateRepo struct {
	db *sql.DB
}

func NewBaseStateRepo(db *sql.DB) BaseStateRepo {
	return BaseStateRepo{db: db}
}

func (r BaseStateRepo) GetByPlayerID(ctx context.Context, playerID string) (ports.BaseStateRecord, error) {
	rec := ports.BaseStateRecord{PlayerID: playerID}
	var updatedMs int64
	err := getQuerier(ctx, r.db).QueryRowContext(ctx,
		`SELECT payload, digest, size_bytes, updated_at_ms FROM base_states WHERE player_id = ?`, playerID,
	).Scan(&rec.Payload, &rec.Digest, &rec.Size, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.BaseStateRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.BaseStateRecord{}, err
	}
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return rec, nil
}

func (r BaseStateRepo) SaveIfUnchanged(ctx context.Context, rec ports.BaseStateRecord, expected *time.Time) error {
	q := getQuerier(ctx, r.db)
	var (
		res sql.Result
		err error
	)
	if expected == nil {
		res, err = q.ExecContext(ctx,
			`INSERT INTO base_states (player_id, payload, digest, size_bytes, updated_at_ms) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(player_id) DO NOTHING`,
			rec.PlayerID, rec.Payload, rec.Digest, rec.Size, rec.UpdatedAt.UnixMilli())
	} else {
		res, err = q.ExecContext(ctx,
			`UPDATE base_states SET payload = ?, digest = ?, size_bytes = ?, updated_at_ms = ?
			 WHERE player_id = ? AND updated_at_ms = ?`,
			rec.Payload, rec.Digest, rec.Size, rec.UpdatedAt.UnixMilli(), rec.PlayerID, expected.UnixMilli())
	}
	return affectedOrConflict(res, err)
}

type PlayerBaseRepo struct {
	db *sql.DB
}

func NewPlayerBaseRepo(db *sql.DB) PlayerBaseRepo {
	return PlayerBaseRepo{db: db}
}

func (r PlayerBaseRepo) GetByPlayerID(ctx context.Context, playerID string) (ports.PlayerBase, error) {
	var (
		b                                     = ports.PlayerBase{PlayerID: playerID}
		levels, mech                          string
		lastCollectedMs, createdMs, updatedMs int64
	)
	err := getQuerier(ctx, r.db).QueryRowContext(ctx,
		`SELECT cash, yield, alpha, tickets, mon, faith, levels, mechanics,
		        last_collected_at_ms, created_at_ms, updated_at_ms, version
		   FROM player_bases WHERE player_id = ?`, playerID,
	).Scan(&b.Resources.Cash, &b.Resources.Yield, &b.Resources.Alpha, &b.Resources.Tickets,
		&b.Resources.Mon, &b.Resources.Faith, &levels, &mech,
		&lastCollectedMs, &createdMs, &updatedMs, &b.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.PlayerBase{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.PlayerBase{}, err
	}
	b.Levels = map[economy.BuildingID]int{}
	if err := json.Unmarshal([]byte(levels), &b.Levels); err != nil {
		return ports.PlayerBase{}, fmt.Errorf("decode levels: %w", err)
	}
	m := economy.NewMechanicsState()
	if err := json.Unmarshal([]byte(mech), &m); err != nil {
		return ports.PlayerBase{}, fmt.Errorf("decode mechanics: %w", err)
	}
	b.Mechanics = m.Clone()
	b.LastCollectedAt = time.UnixMilli(lastCollectedMs).UTC()
	b.CreatedAt = time.UnixMilli(createdMs).UTC()
	b.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return b, nil
}

func (r PlayerBaseRepo) SaveWithVersion(ctx context.Context, base ports.PlayerBase, expectedVersion int64, debit economy.Resources) error {
	levels, err := json.Marshal(base.Levels)
	if err != nil {
		return fmt.Errorf("encode levels: %w", err)
	}
	mech, err := json.Marshal(base.Mechanics)
	if err != nil {
		return fmt.Errorf("encode mechanics: %w", err)
	}
	res := base.Resources
	q := getQuerier(ctx, r.db)
	if expectedVersion == 0 {
		_, err := q.ExecContext(ctx,
			`INSERT INTO player_bases (player_id, cash, yield, alpha, tickets, mon, faith, levels, mechanics,
			                           last_collected_at_ms, created_at_ms, updated_at_ms, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			base.PlayerID, res.Cash, res.Yield, res.Alpha, res.Tickets, res.Mon, res.Faith,
			string(levels), string(mech), base.LastCollectedAt.UnixMilli(), base.CreatedAt.UnixMilli(),
			base.UpdatedAt.UnixMilli(), base.Version)
		if isUniqueViolation(err) {
			return ports.ErrConflict
		}
		return err
	}

	where := []string{"player_id = ?", "version = ?"}
	whereArgs := []any{base.PlayerID, expectedVersion}
	for _, k := range economy.AllResources {
		if d := debit.Get(k); d > 0 {
			where = append(where, k.String()+" >= ?")
			whereArgs = append(whereArgs, d)
		}
	}
	args := []any{res.Cash, res.Yield, res.Alpha, res.Tickets, res.Mon, res.Faith,
		string(levels), string(mech), base.LastCollectedAt.UnixMilli(), base.UpdatedAt.UnixMilli(), base.Version}
	result, err := q.ExecContext(ctx,
		`UPDATE player_bases SET cash = ?, yield = ?, alpha = ?, tickets = ?, mon = ?, faith = ?,
		        levels = ?, mechanics = ?, last_collected_at_ms = ?, updated_at_ms = ?, version = ?
		  WHERE `+strings.Join(where, " AND "),
		append(args, whereArgs...)...)
	return affectedOrConflict(result, err)
}

type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) EventRepo {
	return EventRepo{db: db}
}

func (r EventRepo) Append(ctx context.Context, playerID string, events []ports.BaseEvent) error {
	q := getQuerier(ctx, r.db)
	for _, e := range events {
		b, _ := json.Marshal(e.Payload)
		if _, err := q.ExecContext(ctx,
			`INSERT INTO base_events (player_id, type, occurred_at_ms, payload) VALUES (?, ?, ?, ?)`,
			playerID, e.Type, e.OccurredAt.UnixMilli(), string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (r EventRepo) ListByPlayerID(ctx context.Context, playerID string, limit int) ([]ports.BaseEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := getQuerier(ctx, r.db).QueryContext(ctx,
		`SELECT type, occurred_at_ms, payload FROM base_events
		  WHERE player_id = ? ORDER BY occurred_at_ms DESC, id DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ports.BaseEvent{}
	for rows.Next() {
		var (
			e       ports.BaseEvent
			atMs    int64
			payload sql.NullString
		)
		if err := rows.Scan(&e.Type, &atMs, &payload); err != nil {
			return nil, err
		}
		e.OccurredAt = time.UnixMilli(atMs).UTC()
		if payload.Valid && payload.String != "" {
			_ = json.Unmarshal([]byte(payload.String), &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type PlayerCredentialRepo struct {
	db *sql.DB
}

func NewPlayerCredentialRepo(db *sql.DB) PlayerCredentialRepo {
	return PlayerCredentialRepo{db: db}
}

func (r PlayerCredentialRepo) Create(ctx context.Context, c ports.PlayerCredentialRecord) error {
	_, err := getQuerier(ctx, r.db).ExecContext(ctx,
		`INSERT INTO player_credentials (player_id, key_salt, key_hash, status, created_at_ms) VALUES (?, ?, ?, ?, ?)`,
		c.PlayerID, c.KeySalt, c.KeyHash, c.Status, c.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return ports.ErrConflict
	}
	return err
}

func (r PlayerCredentialRepo) GetByPlayerID(ctx context.Context, playerID string) (ports.PlayerCredentialRecord, error) {
	c := ports.PlayerCredentialRecord{PlayerID: playerID}
	var createdMs int64
	err := getQuerier(ctx, r.db).QueryRowContext(ctx,
		`SELECT key_salt, key_hash, status, created_at_ms FROM player_credentials WHERE player_id = ?`, playerID,
	).Scan(&c.KeySalt, &c.KeyHash, &c.Status, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.PlayerCredentialRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.PlayerCredentialRecord{}, err
	}
	c.CreatedAt = time.UnixMilli(createdMs).UTC()
	return c, nil
}

func affectedOrConflict(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrConflict
	}
	return nil
}
