package gormrepo

import (
	"context"
	"encoding/json"

	"reefbase/internal/adapter/repo/gorm/model"
	"reefbase/internal/app/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepo {
	return EventRepo{db: db}
}

func (r EventRepo) Append(ctx context.Context, playerID string, events []ports.BaseEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]model.BaseEvent, 0, len(events))
	for _, e := range events {
		b, _ := json.Marshal(e.Payload)
		rows = append(rows, model.BaseEvent{
			PlayerID:   playerID,
			Type:       e.Type,
			OccurredAt: e.OccurredAt,
			Payload:    b,
		})
	}
	return getDBFromCtx(ctx, r.db).Create(&rows).Error
}

func (r EventRepo) ListByPlayerID(ctx context.Context, playerID string, limit int) ([]ports.BaseEvent, error) {
	rows := []model.BaseEvent{}
	query := getDBFromCtx(ctx, r.db).
		Where(&model.BaseEvent{PlayerID: playerID}).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "occurred_at"}, Desc: true},
				{Column: clause.Column{Name: "id"}, Desc: true},
			},
		})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]ports.BaseEvent, 0, len(rows))
	for _, row := range rows {
		var payload map[string]any
		if len(row.Payload) > 0 {
			_ = json.Unmarshal(row.Payload, &payload)
		}
		out = append(out, ports.BaseEvent{
			Type:       row.Type,
			OccurredAt: row.OccurredAt.UTC(),
			Payload:    payload,
		})
	}
	return out, nil
}
