package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sample is the protected resource. A sample belongs to exactly one group at
// a time; access to it is derived entirely from that group's position in the
// hierarchy plus the requester's role set.
type Sample struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SampleID    string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sample_id"` // External identifier, e.g. "S123"
	GroupID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"group_id"`
	Group       Group           `gorm:"foreignKey:GroupID" json:"-"`
	Type        string          `gorm:"type:varchar(100);not null" json:"type"`
	Status      string          `gorm:"type:varchar(50);not null" json:"status"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,4)" json:"quantity"`
	Unit        string          `gorm:"type:varchar(20)" json:"unit"` // "mL", "mg", ...
	Metadata    string          `gorm:"type:jsonb" json:"metadata,omitempty"`
	CollectedOn *time.Time      `json:"collected_on,omitempty"`
	DisposedOn  *time.Time      `json:"disposed_on,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Sample statuses
const (
	SampleStatusRegistered = "registered"
	SampleStatusInStorage  = "in_storage"
	SampleStatusInAnalysis = "in_analysis"
	SampleStatusDisposed   = "disposed"
)
