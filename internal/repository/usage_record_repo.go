package repository

import (
	"context"
	"fmt"

	"github.com/sylonai/sylon-voice-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUsageRecordRepository implements UsageRecordRepository using GORM
type GormUsageRecordRepository struct {
	db *gorm.DB
}

// NewGormUsageRecordRepository creates a new GORM usage record repository
func NewGormUsageRecordRepository(db *gorm.DB) *GormUsageRecordRepository {
	return &GormUsageRecordRepository{db: db}
}

// Increment adds delta to the tenant's row for the period, creating it on first use.
func (r *GormUsageRecordRepository) Increment(ctx context.Context, delta domain.UsageDelta) error {
	rec := &domain.UsageRecord{
		TenantID:       delta.TenantID,
		PeriodStart:    delta.PeriodStart,
		PeriodEnd:      delta.PeriodEnd,
		TotalCalls:     delta.Calls,
		TotalMinutes:   delta.Minutes,
		VoiceCostCents: delta.CostCents,
		TotalCostCents: delta.CostCents,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_calls":      gorm.Expr("usage_records.total_calls + ?", delta.Calls),
			"total_minutes":    gorm.Expr("usage_records.total_minutes + ?", delta.Minutes),
			"voice_cost_cents": gorm.Expr("usage_records.voice_cost_cents + ?", delta.CostCents),
			"total_cost_cents": gorm.Expr("usage_records.total_cost_cents + ?", delta.CostCents),
			"updated_at":       gorm.Expr("NOW()"),
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to increment usage record: %w", err)
	}
	return nil
}

// ListByTenant returns the tenant's usage periods, newest first
func (r *GormUsageRecordRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.UsageRecord, error) {
	var records []*domain.UsageRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("period_start DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return records, nil
}
