package repository

import (
	"context"
	"fmt"

	"github.com/sylonai/sylon-voice-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultCallLogLimit = 50
	maxCallLogLimit     = 500
)

// GormCallLogRepository implements CallLogRepository using GORM
type GormCallLogRepository struct {
	db *gorm.DB
}

// NewGormCallLogRepository creates a new GORM call log repository
func NewGormCallLogRepository(db *gorm.DB) *GormCallLogRepository {
	return &GormCallLogRepository{db: db}
}

// Create inserts a call log; a replayed provider call id is ignored.
func (r *GormCallLogRepository) Create(ctx context.Context, log *domain.CallLog) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_call_id"}},
			DoNothing: true,
		}).
		Create(log)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create call log: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByLocation returns the most recent call logs of a location, newest first
func (r *GormCallLogRepository) ListByLocation(ctx context.Context, locationID string, limit int) ([]*domain.CallLog, error) {
	if limit <= 0 {
		limit = defaultCallLogLimit
	}
	if limit > maxCallLogLimit {
		limit = maxCallLogLimit
	}

	var logs []*domain.CallLog
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list call logs: %w", err)
	}
	return logs, nil
}
