package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a laboratory account. Accounts are created inactive on
// signup and must be activated by an admin before they can authenticate.
type User struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"type:varchar(255);not null" json:"-"` // Opaque one-way hash, never serialized
	FirstName      string     `gorm:"type:varchar(255);not null" json:"first_name"`
	LastName       string     `gorm:"type:varchar(255);not null" json:"last_name"`
	IsActive       bool       `gorm:"not null;default:false" json:"is_active"`
	FailedAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"` // Authentication is rejected while this is in the future
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// RefreshToken stores long-lived opaque credentials allowing users to
// re-establish identity without re-presenting the password. The token value
// is unguessable and unique; a rotated or expired token is never accepted again.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
