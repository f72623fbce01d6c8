package repository

import (
	"context"
	"time"

	"lims/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the data access surface for User entities, including
// the atomic counter operations the lockout state machine depends on.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, page, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error

	// RecordFailedAttempt increments the failure counter in a single UPDATE
	// and returns the new value, so concurrent failed logins for the same
	// account cannot observe the same count.
	RecordFailedAttempt(ctx context.Context, id uuid.UUID) (int, error)
	// LockAccount sets locked_until and resets the counter.
	LockAccount(ctx context.Context, id uuid.UUID, until time.Time) error
	// ResetFailures clears the counter and any lockout timestamp.
	ResetFailures(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) RecordFailedAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	var user model.User
	res := GetDB(ctx, r.db).
		Model(&user).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "failed_attempts"}}}).
		Where("id = ?", id).
		UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return user.FailedAttempts, nil
}

func (r *userRepository) LockAccount(ctx context.Context, id uuid.UUID, until time.Time) error {
	return GetDB(ctx, r.db).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"locked_until":    until,
			"failed_attempts": 0,
		}).Error
}

func (r *userRepository) ResetFailures(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"locked_until":    nil,
			"failed_attempts": 0,
		}).Error
}
