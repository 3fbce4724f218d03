package model

const TableNameBaseState = "base_states"

// BaseState mapped from table <base_states>
type BaseState struct {
	PlayerID    string `gorm:"column:player_id;type:text;primaryKey" json:"player_id"`
	Payload     []byte `gorm:"column:payload;type:bytea;not null" json:"payload"`
	Digest      string `gorm:"column:digest;type:text;not null" json:"digest"`
	SizeBytes   int32  `gorm:"column:size_bytes;type:integer;not null" json:"size_bytes"`
	UpdatedAtMs int64  `gorm:"column:updated_at_ms;type:bigint;not null" json:"updated_at_ms"`
}

// TableName BaseState's table name
func (*BaseState) TableName() string {
	return TableNameBaseState
}
