package persistence

import (
	"context"
	"fmt"

	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/configuration"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewAuditDb opens the MySQL reporting database used for the sync audit
// trail and migrates its schema.
func NewAuditDb() (*gorm.DB, error) {
	cfg := configuration.C.Database.MySql
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.SyncAudit{}); err != nil {
		return nil, fmt.Errorf("migrate sync_audits: %w", err)
	}
	return db, nil
}

// SyncAuditRepository appends one row per completed worker run.
type SyncAuditRepository struct{ db *gorm.DB }

func NewSyncAuditRepository(db *gorm.DB) repository.ISyncAudit {
	return &SyncAuditRepository{db: db}
}

func (r *SyncAuditRepository) Append(ctx context.Context, audit *model.SyncAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}
