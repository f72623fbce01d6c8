package model

import (
	"time"

	"github.com/google/uuid"
)

// Group is a node in the lab's group forest. The parent relation must stay
// acyclic; membership in a group grants visibility into the samples of that
// group and every descendant group, never upward.
type Group struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description   string     `gorm:"type:text" json:"description,omitempty"`
	ParentGroupID *uuid.UUID `gorm:"type:uuid;index" json:"parent_group_id,omitempty"`
	IsActive      bool       `gorm:"not null;default:false" json:"is_active"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserGroup links a user to a group. Like UserRole, memberships are
// deactivated rather than deleted.
type UserGroup struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Group    Group     `gorm:"foreignKey:GroupID" json:"-"`
	IsActive bool      `gorm:"not null;default:false" json:"is_active"`
}

func (UserGroup) TableName() string { return "user_groups" }
