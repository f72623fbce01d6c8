package repository

import (
	"context"
	"time"

	"lims/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	GetByValue(ctx context.Context, value string) (*model.RefreshToken, error)

	// DeleteByValue removes the token row and reports how many rows went
	// away. Rotation uses the row count as its race gate: of two concurrent
	// rotations, exactly one observes 1 and becomes the winner.
	DeleteByValue(ctx context.Context, value string) (int64, error)

	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *tokenRepository) GetByValue(ctx context.Context, value string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	if err := GetDB(ctx, r.db).First(&token, "token = ?", value).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) DeleteByValue(ctx context.Context, value string) (int64, error) {
	res := GetDB(ctx, r.db).Where("token = ?", value).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *tokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("expires_at <= ?", now).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}
