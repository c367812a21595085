package domain

import (
	"time"
)

// LocationConnection is the single source of truth for one tenant sub-account (location):
// its CRM identity and everything activation provisioned for it.
type LocationConnection struct {
	ID           string `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     string `json:"tenant_id" gorm:"type:varchar(255);not null;index"`
	LocationID   string `json:"location_id" gorm:"type:varchar(255);not null;uniqueIndex:uni_location_connections_location_id"`
	LocationName string `json:"location_name" gorm:"type:varchar(255)"`

	TelephonyNumber     *string `json:"telephony_number" gorm:"type:varchar(32)"`
	TelephonyNumberID   *string `json:"telephony_number_id" gorm:"type:varchar(64)"`
	VoiceAssistantID    *string `json:"voice_assistant_id" gorm:"type:varchar(64);index"`
	VoiceNumberImportID *string `json:"voice_number_import_id" gorm:"type:varchar(64)"`

	// Sub-account credentials, only set when per-tenant telephony sub-accounts are enabled.
	TelephonyAccountSID *string `json:"-" gorm:"type:varchar(64)"`
	TelephonyAuthToken  *string `json:"-" gorm:"type:varchar(128)"`

	IsActivated bool       `json:"is_activated" gorm:"not null;default:false"`
	ActivatedAt *time.Time `json:"activated_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for LocationConnection
func (LocationConnection) TableName() string {
	return "location_connections"
}

// HasAllProviderIDs reports whether every provider identifier is populated.
func (c *LocationConnection) HasAllProviderIDs() bool {
	return StringValue(c.TelephonyNumber) != "" &&
		StringValue(c.TelephonyNumberID) != "" &&
		StringValue(c.VoiceAssistantID) != "" &&
		StringValue(c.VoiceNumberImportID) != ""
}

// ActivationRecord carries the identifiers an activation run obtained. Empty strings are
// persisted as NULL.
type ActivationRecord struct {
	TenantID            string
	LocationID          string
	LocationName        string
	TelephonyNumber     string
	TelephonyNumberID   string
	VoiceAssistantID    string
	VoiceNumberImportID string
	TelephonyAccountSID string
	TelephonyAuthToken  string
	ActivatedAt         time.Time
}

// Complete reports whether the record satisfies the activated-state invariant.
func (r *ActivationRecord) Complete() bool {
	return r.TelephonyNumber != "" && r.TelephonyNumberID != "" &&
		r.VoiceAssistantID != "" && r.VoiceNumberImportID != ""
}

// LocationView is the dashboard projection of a LocationConnection without credentials.
type LocationView struct {
	TenantID            string     `json:"tenant_id"`
	LocationID          string     `json:"location_id"`
	LocationName        string     `json:"location_name"`
	TelephonyNumber     *string    `json:"telephony_number"`
	TelephonyNumberID   *string    `json:"telephony_number_id"`
	VoiceAssistantID    *string    `json:"voice_assistant_id"`
	VoiceNumberImportID *string    `json:"voice_number_import_id"`
	IsActivated         bool       `json:"is_activated"`
	ActivatedAt         *time.Time `json:"activated_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
