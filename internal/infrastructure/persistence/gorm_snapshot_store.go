package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/robin-raq/collabboard/internal/domain/repository"
	"github.com/robin-raq/collabboard/internal/infrastructure/persistence/models"
)

// GormSnapshotStore is the GORM-backed SnapshotStore: one row per
// room, upserted whole on every save.
type GormSnapshotStore struct {
	db *gorm.DB
}

// NewGormSnapshotStore wraps an already-migrated *gorm.DB.
func NewGormSnapshotStore(db *gorm.DB) repository.SnapshotStore {
	return &GormSnapshotStore{db: db}
}

// Load returns (nil, false, nil) on a missing row; any other DB error
// is returned to the caller, who must treat it as a miss per contract.
func (s *GormSnapshotStore) Load(ctx context.Context, roomID string) ([]byte, bool, error) {
	var model models.SnapshotModel
	err := s.db.WithContext(ctx).First(&model, "room_id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return model.Blob, true, nil
}

// Save upserts the blob for roomID.
func (s *GormSnapshotStore) Save(ctx context.Context, roomID string, data []byte) error {
	model := models.SnapshotModel{RoomID: roomID, Blob: data, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Save(&model).Error
}
