package models

import "time"

// SnapshotModel is the GORM row backing the snapshot store: one
// opaque blob per room, keyed by room_id.
type SnapshotModel struct {
	RoomID    string `gorm:"primaryKey;size:128"`
	Blob      []byte
	UpdatedAt time.Time
}

// TableName pins the table name independent of GORM's pluralization.
func (SnapshotModel) TableName() string {
	return "room_snapshots"
}
