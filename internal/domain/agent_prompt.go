package domain

import (
	"time"
)

// AgentPromptRecord stores the prompt and model selection behind a location's assistant,
// one row per (location, call type).
type AgentPromptRecord struct {
	ID            string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LocationID    string    `json:"location_id" gorm:"type:varchar(255);not null;uniqueIndex:uni_agent_prompts_location_call_type"`
	CallType      CallType  `json:"call_type" gorm:"type:varchar(32);not null;uniqueIndex:uni_agent_prompts_location_call_type"`
	SystemPrompt  string    `json:"system_prompt" gorm:"type:text;not null"`
	FirstMessage  string    `json:"first_message" gorm:"type:text"`
	VoiceProvider string    `json:"voice_provider" gorm:"type:varchar(64)"`
	VoiceID       string    `json:"voice_id" gorm:"type:varchar(128)"`
	ModelProvider string    `json:"model_provider" gorm:"type:varchar(64)"`
	Model         string    `json:"model" gorm:"type:varchar(128)"`
	BusinessName  string    `json:"business_name" gorm:"type:varchar(255)"`
	BusinessType  string    `json:"business_type" gorm:"type:varchar(128)"`
	Active        bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for AgentPromptRecord
func (AgentPromptRecord) TableName() string {
	return "agent_prompts"
}
