package repository

import (
	"context"
	"errors"

	"github.com/sylonai/sylon-voice-service/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// LocationConnectionRepository defines the operations on location_connections
type LocationConnectionRepository interface {
	// Read operations
	GetByLocationID(ctx context.Context, locationID string) (*domain.LocationConnection, error)
	GetByAssistantID(ctx context.Context, assistantID string) (*domain.LocationConnection, error)
	FindTenantSubAccount(ctx context.Context, tenantID string) (*domain.LocationConnection, error)
	LockByLocationID(ctx context.Context, locationID string) (*domain.LocationConnection, error)

	// Write operations
	SaveActivation(ctx context.Context, rec *domain.ActivationRecord) (*domain.LocationConnection, error)
	ClearActivation(ctx context.Context, locationID string) error
}

// AgentPromptRepository defines the operations on agent_prompts
type AgentPromptRepository interface {
	Upsert(ctx context.Context, rec *domain.AgentPromptRecord) error
	SetActive(ctx context.Context, locationID string, active bool) error
	GetByLocation(ctx context.Context, locationID string, callType domain.CallType) (*domain.AgentPromptRecord, error)
}

// CallLogRepository defines the operations on call_logs
type CallLogRepository interface {
	// Create inserts the log unless one with the same provider call id exists; the bool
	// reports whether a row was written.
	Create(ctx context.Context, log *domain.CallLog) (bool, error)
	ListByLocation(ctx context.Context, locationID string, limit int) ([]*domain.CallLog, error)
}

// UsageRecordRepository defines the operations on usage_records
type UsageRecordRepository interface {
	Increment(ctx context.Context, delta domain.UsageDelta) error
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.UsageRecord, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	LocationConnection() LocationConnectionRepository
	AgentPrompt() AgentPromptRepository
	CallLog() CallLogRepository
	UsageRecord() UsageRecordRepository

	// Transaction support
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db                 *gorm.DB
	locationConnection *GormLocationConnectionRepository
	agentPrompt        *GormAgentPromptRepository
	callLog            *GormCallLogRepository
	usageRecord        *GormUsageRecordRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:                 db,
		locationConnection: NewGormLocationConnectionRepository(db),
		agentPrompt:        NewGormAgentPromptRepository(db),
		callLog:            NewGormCallLogRepository(db),
		usageRecord:        NewGormUsageRecordRepository(db),
	}
}

// LocationConnection returns the location connection repository
func (m *GormRepositoryManager) LocationConnection() LocationConnectionRepository {
	return m.locationConnection
}

// AgentPrompt returns the agent prompt repository
func (m *GormRepositoryManager) AgentPrompt() AgentPromptRepository {
	return m.agentPrompt
}

// CallLog returns the call log repository
func (m *GormRepositoryManager) CallLog() CallLogRepository {
	return m.callLog
}

// UsageRecord returns the usage record repository
func (m *GormRepositoryManager) UsageRecord() UsageRecordRepository {
	return m.usageRecord
}

// WithTx executes fn within a database transaction. Repositories handed to fn share the tx.
func (m *GormRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositoryManager(tx))
	})
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
