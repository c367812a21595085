package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sylonai/sylon-voice-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAgentPromptRepository implements AgentPromptRepository using GORM
type GormAgentPromptRepository struct {
	db *gorm.DB
}

// NewGormAgentPromptRepository creates a new GORM agent prompt repository
func NewGormAgentPromptRepository(db *gorm.DB) *GormAgentPromptRepository {
	return &GormAgentPromptRepository{db: db}
}

// Upsert writes the prompt keyed by (location_id, call_type) and re-activates it.
func (r *GormAgentPromptRepository) Upsert(ctx context.Context, rec *domain.AgentPromptRecord) error {
	rec.Active = true
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "location_id"}, {Name: "call_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"system_prompt",
			"first_message",
			"voice_provider",
			"voice_id",
			"model_provider",
			"model",
			"business_name",
			"business_type",
			"active",
			"updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert agent prompt: %w", err)
	}
	return nil
}

// SetActive flips the active flag on every prompt of a location. Missing rows are not an error.
func (r *GormAgentPromptRepository) SetActive(ctx context.Context, locationID string, active bool) error {
	err := r.db.WithContext(ctx).
		Model(&domain.AgentPromptRecord{}).
		Where("location_id = ?", locationID).
		Update("active", active).Error
	if err != nil {
		return fmt.Errorf("failed to update agent prompt state: %w", err)
	}
	return nil
}

// GetByLocation retrieves the prompt of a location for a call type
func (r *GormAgentPromptRepository) GetByLocation(ctx context.Context, locationID string, callType domain.CallType) (*domain.AgentPromptRecord, error) {
	var rec domain.AgentPromptRecord
	err := r.db.WithContext(ctx).First(&rec, "location_id = ? AND call_type = ?", locationID, callType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent prompt %s/%s: %w", locationID, callType, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get agent prompt: %w", err)
	}
	return &rec, nil
}
