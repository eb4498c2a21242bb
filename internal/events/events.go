// Package events defines the event payloads published by the avatar service.
package events

import "time"

// AvatarGenerated is emitted when a new avatar state is persisted.
type AvatarGenerated struct {
	AvatarID               string    `json:"avatar_id"`
	TenantID               string    `json:"tenant_id"`
	UserID                 string    `json:"user_id"`
	Backend                string    `json:"backend"`
	Gender                 string    `json:"gender"`
	Scale                  float64   `json:"scale"`
	PersonalizationApplied bool      `json:"personalization_applied"`
	GeneratedAt            time.Time `json:"generated_at"`
}

// MorphCompleted is emitted when a morph sequence has been exported.
type MorphCompleted struct {
	SequenceID    string    `json:"sequence_id"`
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id"`
	StartAvatarID string    `json:"start_avatar_id"`
	EndAvatarID   string    `json:"end_avatar_id"`
	Steps         int       `json:"steps"`
	Backend       string    `json:"backend"`
	CompletedAt   time.Time `json:"completed_at"`
}
