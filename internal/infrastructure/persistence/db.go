package persistence

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/robin-raq/collabboard/internal/infrastructure/config"
	"github.com/robin-raq/collabboard/internal/infrastructure/persistence/models"
)

// NewDBConnection opens a GORM connection per cfg.Type and migrates
// the snapshot table. Callers that configure database.type=memory
// should use NewMemorySnapshotStore instead and never call this.
func NewDBConnection(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("persistence: unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: connect: %w", err)
	}

	if err := db.AutoMigrate(&models.SnapshotModel{}); err != nil {
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	return db, nil
}
