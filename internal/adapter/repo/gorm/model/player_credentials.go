package model

import "time"

const TableNamePlayerCredential = "player_credentials"

// PlayerCredential mapped from table <player_credentials>
type PlayerCredential struct {
	PlayerID  string    `gorm:"column:player_id;type:text;primaryKey" json:"player_id"`
	KeySalt   []byte    `gorm:"column:key_salt;type:bytea;not null" json:"key_salt"`
	KeyHash   []byte    `gorm:"column:key_hash;type:bytea;not null" json:"key_hash"`
	Status    string    `gorm:"column:status;type:text;not null" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp with time zone;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp with time zone;not null" json:"updated_at"`
}

// TableName PlayerCredential's table name
func (*PlayerCredential) TableName() string {
	return TableNamePlayerCredential
}
