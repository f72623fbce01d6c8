package service

import (
	"context"
	"errors"
	"time"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenService manages the refresh-token lifecycle. Token values are opaque
// random UUIDs; once a value is rotated, expired or revoked it is never
// accepted again. The audit trail only ever sees the token's row id and
// owning user, never the raw value.
type TokenService interface {
	Issue(ctx context.Context, userID uuid.UUID) (*model.RefreshToken, error)
	Validate(ctx context.Context, value string) (*model.User, error)
	Rotate(ctx context.Context, value string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, value string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type tokenService struct {
	tokens repository.TokenRepository
	users  repository.UserRepository
	audit  AuditService
	tx     repository.TransactionManager
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(tokens repository.TokenRepository, users repository.UserRepository, audit AuditService, tx repository.TransactionManager, ttl time.Duration) TokenService {
	return &tokenService{
		tokens: tokens,
		users:  users,
		audit:  audit,
		tx:     tx,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *tokenService) Issue(ctx context.Context, userID uuid.UUID) (*model.RefreshToken, error) {
	token := &model.RefreshToken{
		UserID:    userID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.ttl),
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tokens.Create(txCtx, token); err != nil {
			return err
		}
		return s.audit.Record(txCtx, &userID, model.ActionTokenIssued, map[string]any{
			"token_id": token.ID.String(),
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	return token, nil
}

func (s *tokenService) Validate(ctx context.Context, value string) (*model.User, error) {
	token, err := s.tokens.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, classify(err)
	}
	if !s.now().Before(token.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, classify(err)
	}

	return user, nil
}

// Rotate atomically invalidates the presented token and issues a replacement
// bound to the same user. The delete-by-value row count is the race gate: of
// two concurrent rotations of the same token, exactly one deletes the row and
// wins; the loser gets ErrInvalidToken and never produces a second successor.
func (s *tokenService) Rotate(ctx context.Context, value string) (*model.RefreshToken, error) {
	var successor *model.RefreshToken

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		old, err := s.tokens.GetByValue(txCtx, value)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if !s.now().Before(old.ExpiresAt) {
			return ErrInvalidToken
		}

		deleted, err := s.tokens.DeleteByValue(txCtx, value)
		if err != nil {
			return err
		}
		if deleted == 0 {
			// Lost the race: another rotation already consumed this value.
			return ErrInvalidToken
		}

		successor = &model.RefreshToken{
			UserID:    old.UserID,
			Token:     uuid.NewString(),
			ExpiresAt: s.now().Add(s.ttl),
		}
		if err := s.tokens.Create(txCtx, successor); err != nil {
			return err
		}

		return s.audit.Record(txCtx, &old.UserID, model.ActionTokenRotated, map[string]any{
			"old_token_id": old.ID.String(),
			"new_token_id": successor.ID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, ErrInvalidToken
		}
		return nil, classify(err)
	}

	return successor, nil
}

func (s *tokenService) Revoke(ctx context.Context, value string) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		old, err := s.tokens.GetByValue(txCtx, value)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		deleted, err := s.tokens.DeleteByValue(txCtx, value)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrInvalidToken
		}

		return s.audit.Record(txCtx, &old.UserID, model.ActionTokenRevoked, map[string]any{
			"token_id": old.ID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return ErrInvalidToken
		}
		return classify(err)
	}
	return nil
}

func (s *tokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		deleted, err := s.tokens.DeleteByUser(txCtx, userID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}
		return s.audit.Record(txCtx, &userID, model.ActionTokenRevoked, map[string]any{
			"revoked": deleted,
		})
	})
	return classify(err)
}

// PurgeExpired removes expired token rows. Expiry is enforced lazily by
// Validate and Rotate; this sweep is hygiene only.
func (s *tokenService) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, classify(err)
	}
	return deleted, nil
}
