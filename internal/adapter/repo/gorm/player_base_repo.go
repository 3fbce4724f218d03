package gormrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reefbase/internal/adapter/repo/gorm/model"
	"reefbase/internal/app/ports"
	"reefbase/internal/domain/economy"

	"gorm.io/gorm"
)

type PlayerBaseRepo struct {
	db *gorm.DB
}

func NewPlayerBaseRepo(db *gorm.DB) PlayerBaseRepo {
	return PlayerBaseRepo{db: db}
}

func (r PlayerBaseRepo) GetByPlayerID(ctx context.Context, playerID string) (ports.PlayerBase, error) {
	var m model.PlayerBase
	if err := getDBFromCtx(ctx, r.db).Where("player_id = ?", playerID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.PlayerBase{}, ports.ErrNotFound
		}
		return ports.PlayerBase{}, err
	}
	levels := map[economy.BuildingID]int{}
	if len(m.Levels) > 0 {
		if err := json.Unmarshal(m.Levels, &levels); err != nil {
			return ports.PlayerBase{}, fmt.Errorf("decode levels: %w", err)
		}
	}
	mech := economy.NewMechanicsState()
	if len(m.Mechanics) > 0 {
		if err := json.Unmarshal(m.Mechanics, &mech); err != nil {
			return ports.PlayerBase{}, fmt.Errorf("decode mechanics: %w", err)
		}
	}
	return ports.PlayerBase{
		PlayerID: m.PlayerID,
		Resources: economy.Resources{
			Cash: m.Cash, Yield: m.Yield, Alpha: m.Alpha,
			Tickets: m.Tickets, Mon: m.Mon, Faith: m.Faith,
		},
		Levels:          levels,
		Mechanics:       mech.Clone(),
		LastCollectedAt: m.LastCollectedAt.UTC(),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
		Version:         m.Version,
	}, nil
}

// SaveWithVersion is a single conditional UPDATE: the version guard and the balance
// guard for debit are evaluated by the database in the same statement.
func (r PlayerBaseRepo) SaveWithVersion(ctx context.Context, base ports.PlayerBase, expectedVersion int64, debit economy.Resources) error {
	levels, err := json.Marshal(base.Levels)
	if err != nil {
		return fmt.Errorf("encode levels: %w", err)
	}
	mech, err := json.Marshal(base.Mechanics)
	if err != nil {
		return fmt.Errorf("encode mechanics: %w", err)
	}
	db := getDBFromCtx(ctx, r.db)
	if expectedVersion == 0 {
		m := model.PlayerBase{
			PlayerID:        base.PlayerID,
			Cash:            base.Resources.Cash,
			Yield:           base.Resources.Yield,
			Alpha:           base.Resources.Alpha,
			Tickets:         base.Resources.Tickets,
			Mon:             base.Resources.Mon,
			Faith:           base.Resources.Faith,
			Levels:          levels,
			Mechanics:       mech,
			LastCollectedAt: base.LastCollectedAt,
			CreatedAt:       base.CreatedAt,
			UpdatedAt:       base.UpdatedAt,
			Version:         base.Version,
		}
		if err := db.Create(&m).Error; err != nil {
			if isUniqueViolation(err) {
				return ports.ErrConflict
			}
			return err
		}
		return nil
	}

	query := db.Model(&model.PlayerBase{}).Where("player_id = ? AND version = ?", base.PlayerID, expectedVersion)
	for _, k := range economy.AllResources {
		if d := debit.Get(k); d > 0 {
			query = query.Where(k.String()+" >= ?", d)
		}
	}
	res := query.Updates(map[string]any{
		"cash":              base.Resources.Cash,
		"yield":             base.Resources.Yield,
		"alpha":             base.Resources.Alpha,
		"tickets":           base.Resources.Tickets,
		"mon":               base.Resources.Mon,
		"faith":             base.Resources.Faith,
		"levels":            levels,
		"mechanics":         mech,
		"last_collected_at": base.LastCollectedAt,
		"updated_at":        base.UpdatedAt,
		"version":           base.Version,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrConflict
	}
	return nil
}
