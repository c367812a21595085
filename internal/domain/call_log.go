package domain

import (
	"time"
)

// CallLog records one completed call reported by the voice-AI provider.
type CallLog struct {
	ID                string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID          *string   `json:"tenant_id" gorm:"type:varchar(255);index"`
	LocationID        *string   `json:"location_id" gorm:"type:varchar(255);index"`
	ProviderCallID    string    `json:"provider_call_id" gorm:"type:varchar(128);not null;uniqueIndex:uni_call_logs_provider_call_id"`
	AssistantID       string    `json:"assistant_id" gorm:"type:varchar(64)"`
	ContactPhone      string    `json:"contact_phone" gorm:"type:varchar(32)"`
	Direction         string    `json:"direction" gorm:"type:varchar(16)"`
	Status            string    `json:"status" gorm:"type:varchar(64)"`
	DurationSeconds   int       `json:"duration_seconds"`
	CostCents         int64     `json:"cost_cents"`
	Transcript        string    `json:"transcript" gorm:"type:text"`
	Summary           string    `json:"summary" gorm:"type:text"`
	RecordingURL      string    `json:"recording_url" gorm:"type:text"`
	TranscriptArchive string    `json:"transcript_archive,omitempty" gorm:"type:text"`
	Sentiment         *string   `json:"sentiment" gorm:"type:varchar(32)"`
	AppointmentBooked bool      `json:"appointment_booked" gorm:"default:false"`
	Metadata          JSONB     `json:"metadata" gorm:"type:jsonb"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName sets the table name for CallLog
func (CallLog) TableName() string {
	return "call_logs"
}

// UsageRecord aggregates a tenant's call usage for one calendar month.
type UsageRecord struct {
	ID             string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID       string    `json:"tenant_id" gorm:"type:varchar(255);not null;uniqueIndex:uni_usage_records_tenant_period"`
	PeriodStart    time.Time `json:"period_start" gorm:"type:date;not null;uniqueIndex:uni_usage_records_tenant_period"`
	PeriodEnd      time.Time `json:"period_end" gorm:"type:date;not null"`
	TotalCalls     int       `json:"total_calls" gorm:"not null;default:0"`
	TotalMinutes   int       `json:"total_minutes" gorm:"not null;default:0"`
	VoiceCostCents int64     `json:"voice_cost_cents" gorm:"not null;default:0"`
	TotalCostCents int64     `json:"total_cost_cents" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for UsageRecord
func (UsageRecord) TableName() string {
	return "usage_records"
}

// UsageDelta is what a single completed call adds to a tenant's monthly usage.
type UsageDelta struct {
	TenantID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Calls       int
	Minutes     int
	CostCents   int64
}

// MonthPeriod returns the first and last day (UTC dates) of the month containing t.
func MonthPeriod(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}
