package gormrepo

import (
	"context"
	"errors"
	"time"

	"reefbase/internal/adapter/repo/gorm/model"
	"reefbase/internal/app/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BaseStateRepo stores snapshot blobs. updatedAt is kept as epoch milliseconds so
// the compare in SaveIfUnchanged is exact.
type BaseStateRepo struct {
	db *gorm.DB
}

func NewBaseStateRepo(db *gorm.DB) BaseStateRepo {
	return BaseStateRepo{db: db}
}

func (r BaseStateRepo) GetByPlayerID(ctx context.Context, playerID string) (ports.BaseStateRecord, error) {
	var m model.BaseState
	if err := getDBFromCtx(ctx, r.db).Where("player_id = ?", playerID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.BaseStateRecord{}, ports.ErrNotFound
		}
		return ports.BaseStateRecord{}, err
	}
	return ports.BaseStateRecord{
		PlayerID:  m.PlayerID,
		Payload:   m.Payload,
		Digest:    m.Digest,
		Size:      int(m.SizeBytes),
		UpdatedAt: time.UnixMilli(m.UpdatedAtMs).UTC(),
	}, nil
}

func (r BaseStateRepo) SaveIfUnchanged(ctx context.Context, rec ports.BaseStateRecord, expected *time.Time) error {
	db := getDBFromCtx(ctx, r.db)
	if expected == nil {
		m := model.BaseState{
			PlayerID:    rec.PlayerID,
			Payload:     rec.Payload,
			Digest:      rec.Digest,
			SizeBytes:   int32(rec.Size),
			UpdatedAtMs: rec.UpdatedAt.UnixMilli(),
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ports.ErrConflict
		}
		return nil
	}

	res := db.Model(&model.BaseState{}).
		Where("player_id = ? AND updated_at_ms = ?", rec.PlayerID, expected.UnixMilli()).
		Updates(map[string]any{
			"payload":       rec.Payload,
			"digest":        rec.Digest,
			"size_bytes":    int32(rec.Size),
			"updated_at_ms": rec.UpdatedAt.UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrConflict
	}
	return nil
}
