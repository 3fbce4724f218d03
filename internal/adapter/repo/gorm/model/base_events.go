package model

import "time"

const TableNameBaseEvent = "base_events"

// BaseEvent mapped from table <base_events>
type BaseEvent struct {
	ID         int64     `gorm:"column:id;type:bigint;primaryKey;autoIncrement:true" json:"id"`
	PlayerID   string    `gorm:"column:player_id;type:text;not null" json:"player_id"`
	Type       string    `gorm:"column:type;type:text;not null" json:"type"`
	OccurredAt time.Time `gorm:"column:occurred_at;type:timestamp with time zone;not null" json:"occurred_at"`
	Payload    []byte    `gorm:"column:payload;type:jsonb" json:"payload"`
}

// TableName BaseEvent's table name
func (*BaseEvent) TableName() string {
	return TableNameBaseEvent
}
