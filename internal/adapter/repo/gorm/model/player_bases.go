package model

import "time"

const TableNamePlayerBase = "player_bases"

// PlayerBase mapped from table <player_bases>
type PlayerBase struct {
	PlayerID        string    `gorm:"column:player_id;type:text;primaryKey" json:"player_id"`
	Cash            float64   `gorm:"column:cash;type:double precision;not null" json:"cash"`
	Yield           float64   `gorm:"column:yield;type:double precision;not null" json:"yield"`
	Alpha           float64   `gorm:"column:alpha;type:double precision;not null" json:"alpha"`
	Tickets         float64   `gorm:"column:tickets;type:double precision;not null" json:"tickets"`
	Mon             float64   `gorm:"column:mon;type:double precision;not null" json:"mon"`
	Faith           float64   `gorm:"column:faith;type:double precision;not null" json:"faith"`
	Levels          []byte    `gorm:"column:levels;type:jsonb;not null" json:"levels"`
	Mechanics       []byte    `gorm:"column:mechanics;type:jsonb;not null" json:"mechanics"`
	LastCollectedAt time.Time `gorm:"column:last_collected_at;type:timestamp with time zone;not null" json:"last_collected_at"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamp with time zone;not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamp with time zone;not null" json:"updated_at"`
	Version         int64     `gorm:"column:version;type:bigint;not null" json:"version"`
}

// TableName PlayerBase's table name
func (*PlayerBase) TableName() string {
	return TableNamePlayerBase
}
