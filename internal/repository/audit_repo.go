package repository

import (
	"context"
	"time"

	"lims/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditFilter narrows an audit listing. Zero values mean "no constraint".
type AuditFilter struct {
	UserID *uuid.UUID
	Action string
	From   *time.Time
	To     *time.Time
}

type AuditRepository interface {
	// Append writes one entry. It participates in the caller's transaction
	// when one is in the context, so a decision's audit record commits with
	// (or before) the decision's state change.
	Append(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error)
	// Annotate updates Details and UpdatedAt on an existing entry. The
	// original action, timestamp and user id are never touched.
	Annotate(ctx context.Context, id uuid.UUID, details string) error
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditLog) error {
	// An audit write must not be abandoned because the originating request
	// went away; strip cancellation but keep the transaction handle.
	return GetDB(context.WithoutCancel(ctx), r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	db := GetDB(ctx, r.db).Model(&model.AuditLog{})
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		db = db.Where("action = ?", filter.Action)
	}
	if filter.From != nil {
		db = db.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("timestamp < ?", *filter.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("User").Order("timestamp desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *auditRepository) Annotate(ctx context.Context, id uuid.UUID, details string) error {
	now := time.Now()
	res := GetDB(ctx, r.db).
		Model(&model.AuditLog{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"details":    details,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
