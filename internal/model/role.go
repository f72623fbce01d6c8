package model

import (
	"time"

	"github.com/google/uuid"
)

// AdminRoleName is the conventional name of the universal-bypass role. A user
// holding an active assignment of an active role with this name is granted
// access to every sample regardless of group scoping.
const AdminRoleName = "Admin"

// Role is a named permission bundle assigned to users via UserRole.
type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Permissions string    `gorm:"type:jsonb" json:"permissions"` // Serialized permission-key -> grant map
	IsActive    bool      `gorm:"not null;default:false" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserRole links a user to a role. Assignments are deactivated rather than
// deleted so the association history stays auditable.
type UserRole struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	RoleID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Role     Role      `gorm:"foreignKey:RoleID" json:"-"`
	IsActive bool      `gorm:"not null;default:false" json:"is_active"`
}

func (UserRole) TableName() string { return "user_roles" }
