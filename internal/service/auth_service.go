package service

import (
	"context"
	"errors"
	"time"

	"lims/internal/config"
	"lims/internal/model"
	"lims/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for request validation
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

// AuthService gates authentication with the account-lockout state machine:
// 5 consecutive failures lock the account for the configured duration, and a
// locked account rejects even a correct credential until the lock lapses.
// Lock expiry is lazy; the next attempt at or after the deadline proceeds
// normally.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenPairResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPairResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	users  repository.UserRepository
	tokens TokenService
	audit  AuditService
	tx     repository.TransactionManager
	cfg    config.Config
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens TokenService, audit AuditService, tx repository.TransactionManager, cfg config.Config) AuthService {
	return &authService{
		users:  users,
		tokens: tokens,
		audit:  audit,
		tx:     tx,
		cfg:    cfg,
		now:    time.Now,
	}
}

// dummyHash is compared against when the account is unknown, inactive or
// locked, so those rejections cost the same as a wrong password and the
// response latency does not leak account state.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func burnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenPairResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			burnCompare(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, classify(err)
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		burnCompare(req.Password)
		if err := s.audit.Record(ctx, &user.ID, model.ActionLoginWhileLocked, nil); err != nil {
			return nil, err
		}
		if s.cfg.ExposeUnlockTime {
			return nil, &AccountLockedError{Until: *user.LockedUntil}
		}
		return nil, ErrAccountLocked
	}

	if !user.IsActive {
		burnCompare(req.Password)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if err := s.recordFailure(ctx, user.ID, now); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	// Success clears the counter (and a lapsed lock) and commits the audit
	// record before the caller sees the result.
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if user.FailedAttempts > 0 || user.LockedUntil != nil {
			if err := s.users.ResetFailures(txCtx, user.ID); err != nil {
				return err
			}
		}
		return s.audit.Record(txCtx, &user.ID, model.ActionLoginSuccess, nil)
	})
	if err != nil {
		return nil, classify(err)
	}

	return s.issuePair(ctx, user)
}

// recordFailure increments the failure counter atomically and, at the
// threshold, transitions the account to Locked(now + duration). The counter
// update, lockout transition and audit record commit as one transaction with
// respect to concurrent attempts on the same account.
func (s *authService) recordFailure(ctx context.Context, userID uuid.UUID, now time.Time) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		failures, err := s.users.RecordFailedAttempt(txCtx, userID)
		if err != nil {
			return err
		}

		if failures >= s.cfg.LockoutThreshold {
			until := now.Add(s.cfg.LockoutDuration)
			if err := s.users.LockAccount(txCtx, userID, until); err != nil {
				return err
			}
			// A locked account must not keep refreshing its way to new
			// access tokens; outstanding refresh tokens die with the lock.
			if err := s.tokens.RevokeAllForUser(txCtx, userID); err != nil {
				return err
			}
			return s.audit.Record(txCtx, &userID, model.ActionAccountLocked, map[string]any{
				"failures":     failures,
				"locked_until": until.Format(time.RFC3339),
			})
		}

		return s.audit.Record(txCtx, &userID, model.ActionLoginFailed, map[string]any{
			"failures": failures,
		})
	})
	return classify(err)
}

func (s *authService) Refresh(ctx context.Context, req RefreshRequest) (*TokenPairResponse, error) {
	user, err := s.tokens.Validate(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	if user.LockedUntil != nil && s.now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	rotated, err := s.tokens.Rotate(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	access, expiresAt, err := s.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &TokenPairResponse{
		AccessToken:  access,
		RefreshToken: rotated.Token,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
	}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	err := s.tokens.Revoke(ctx, refreshToken)
	if errors.Is(err, ErrInvalidToken) {
		// Already gone; logout is idempotent.
		return nil
	}
	return err
}

func (s *authService) issuePair(ctx context.Context, user *model.User) (*TokenPairResponse, error) {
	refresh, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	access, expiresAt, err := s.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
	}, nil
}

func (s *authService) signAccessToken(user *model.User) (string, time.Time, error) {
	expiresAt := s.now().Add(s.cfg.AccessTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"exp":   expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, errors.New("failed to generate token")
	}
	return signed, expiresAt, nil
}
