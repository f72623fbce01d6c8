package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionLoginSuccess     = "login_success"
	ActionLoginFailed      = "login_failed"
	ActionLoginWhileLocked = "login_attempt_while_locked"
	ActionAccountLocked    = "account_locked"

	ActionAccessGranted = "access_granted"
	ActionAccessDenied  = "access_denied"

	ActionTokenIssued  = "token_issued"
	ActionTokenRotated = "token_rotated"
	ActionTokenRevoked = "token_revoked"

	ActionUserRegistered = "user_registered"
	ActionUserActivated  = "user_activated"
	ActionRoleAssigned   = "role_assigned"
	ActionGroupAssigned  = "group_assigned"
	ActionGroupCreated   = "group_created"
)

// AuditLog is an append-only record of a security-relevant event. Once
// written, the UserID, Action and Timestamp fields are never changed; the only
// permitted follow-up is annotation, which touches Details and UpdatedAt.
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Null for system or anonymous events
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	Details   string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the event
	Timestamp time.Time  `gorm:"not null;index;autoCreateTime" json:"timestamp"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"` // Set only by annotation, never on create
}

func (AuditLog) TableName() string { return "audit_log" }
