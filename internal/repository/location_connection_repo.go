package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sylonai/sylon-voice-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLocationConnectionRepository implements LocationConnectionRepository using GORM
type GormLocationConnectionRepository struct {
	db *gorm.DB
}

// NewGormLocationConnectionRepository creates a new GORM location connection repository
func NewGormLocationConnectionRepository(db *gorm.DB) *GormLocationConnectionRepository {
	return &GormLocationConnectionRepository{db: db}
}

// GetByLocationID retrieves a location connection by its CRM location id
func (r *GormLocationConnectionRepository) GetByLocationID(ctx context.Context, locationID string) (*domain.LocationConnection, error) {
	var conn domain.LocationConnection
	if err := r.db.WithContext(ctx).First(&conn, "location_id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("location connection %s: %w", locationID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get location connection: %w", err)
	}
	return &conn, nil
}

// GetByAssistantID retrieves the location connection that owns a voice assistant
func (r *GormLocationConnectionRepository) GetByAssistantID(ctx context.Context, assistantID string) (*domain.LocationConnection, error) {
	var conn domain.LocationConnection
	if err := r.db.WithContext(ctx).First(&conn, "voice_assistant_id = ?", assistantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("location connection for assistant %s: %w", assistantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get location connection by assistant: %w", err)
	}
	return &conn, nil
}

// FindTenantSubAccount returns any connection of the tenant that already carries telephony
// sub-account credentials.
func (r *GormLocationConnectionRepository) FindTenantSubAccount(ctx context.Context, tenantID string) (*domain.LocationConnection, error) {
	var conn domain.LocationConnection
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND telephony_account_sid IS NOT NULL AND telephony_auth_token IS NOT NULL", tenantID).
		Order("created_at ASC").
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sub-account for tenant %s: %w", tenantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find tenant sub-account: %w", err)
	}
	return &conn, nil
}

// LockByLocationID reads the row with SELECT ... FOR UPDATE. Only meaningful inside WithTx.
func (r *GormLocationConnectionRepository) LockByLocationID(ctx context.Context, locationID string) (*domain.LocationConnection, error) {
	var conn domain.LocationConnection
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&conn, "location_id = ?", locationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("location connection %s: %w", locationID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock location connection: %w", err)
	}
	return &conn, nil
}

// SaveActivation upserts the connection keyed by location id. The row is marked activated only
// when the record carries all four provider identifiers.
func (r *GormLocationConnectionRepository) SaveActivation(ctx context.Context, rec *domain.ActivationRecord) (*domain.LocationConnection, error) {
	conn := &domain.LocationConnection{
		TenantID:            rec.TenantID,
		LocationID:          rec.LocationID,
		LocationName:        rec.LocationName,
		TelephonyNumber:     domain.StringPtr(rec.TelephonyNumber),
		TelephonyNumberID:   domain.StringPtr(rec.TelephonyNumberID),
		VoiceAssistantID:    domain.StringPtr(rec.VoiceAssistantID),
		VoiceNumberImportID: domain.StringPtr(rec.VoiceNumberImportID),
		TelephonyAccountSID: domain.StringPtr(rec.TelephonyAccountSID),
		TelephonyAuthToken:  domain.StringPtr(rec.TelephonyAuthToken),
		IsActivated:         rec.Complete(),
	}
	if conn.IsActivated {
		activatedAt := rec.ActivatedAt
		if activatedAt.IsZero() {
			activatedAt = time.Now().UTC()
		}
		conn.ActivatedAt = &activatedAt
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "location_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"telephony_number",
			"telephony_number_id",
			"voice_assistant_id",
			"voice_number_import_id",
			"telephony_account_sid",
			"telephony_auth_token",
			"is_activated",
			"activated_at",
			"updated_at",
		}),
	}).Create(conn).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save location activation: %w", err)
	}

	return r.GetByLocationID(ctx, rec.LocationID)
}

// ClearActivation nulls every provider identifier and marks the location not activated.
// Sub-account credentials are kept so a later activation reuses the same sub-account.
func (r *GormLocationConnectionRepository) ClearActivation(ctx context.Context, locationID string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.LocationConnection{}).
		Where("location_id = ?", locationID).
		Updates(map[string]interface{}{
			"telephony_number":       nil,
			"telephony_number_id":    nil,
			"voice_assistant_id":     nil,
			"voice_number_import_id": nil,
			"is_activated":           false,
			"activated_at":           nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to clear location activation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("location connection %s: %w", locationID, ErrNotFound)
	}
	return nil
}
