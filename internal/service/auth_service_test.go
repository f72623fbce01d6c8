package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lims/internal/config"
	"lims/internal/model"

	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery staple"

func testConfig() config.Config {
	return config.Config{
		JWTSecret:        "test-secret",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  24 * time.Hour,
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
	}
}

func newTestUser(t *testing.T) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &model.User{
		Email:        "analyst@lab.test",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

// newAuthFixture wires an auth service over in-memory stores with a
// controllable clock shared by the auth and token layers.
func newAuthFixture(t *testing.T, cfg config.Config) (*authService, *fakeUserRepo, *fakeAudit, *model.User, *time.Time) {
	t.Helper()
	user := newTestUser(t)
	users := newFakeUserRepo(user)
	audit := &fakeAudit{}
	tx := &fakeTx{}

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := NewTokenService(newFakeTokenRepo(), users, audit, tx, cfg.RefreshTokenTTL).(*tokenService)
	tokens.now = func() time.Time { return clock }

	svc := NewAuthService(users, tokens, audit, tx, cfg).(*authService)
	svc.now = func() time.Time { return clock }

	return svc, users, audit, user, &clock
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	cfg := testConfig()
	svc, users, audit, user, clock := newAuthFixture(t, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.LockoutThreshold; i++ {
		_, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if got := len(audit.byAction(model.ActionAccountLocked)); got != 1 {
		t.Fatalf("expected exactly one account_locked entry, got %d", got)
	}
	stored, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.LockedUntil == nil {
		t.Fatalf("account must be locked after %d failures", cfg.LockoutThreshold)
	}
	wantUntil := clock.Add(cfg.LockoutDuration)
	if !stored.LockedUntil.Equal(wantUntil) {
		t.Fatalf("locked_until = %v, want %v", stored.LockedUntil, wantUntil)
	}

	// The correct password during the lock window is still rejected, and the
	// rejection is audited without incrementing the failure counter.
	*clock = clock.Add(3 * time.Second)
	_, err = svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked during lock window, got %v", err)
	}
	if got := len(audit.byAction(model.ActionLoginWhileLocked)); got != 1 {
		t.Fatalf("expected one login_attempt_while_locked entry, got %d", got)
	}
	if got := len(audit.byAction(model.ActionAccountLocked)); got != 1 {
		t.Fatalf("lock must not be re-recorded, got %d entries", got)
	}
}

func TestLoginSucceedsAfterLockExpires(t *testing.T) {
	cfg := testConfig()
	svc, users, audit, user, clock := newAuthFixture(t, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.LockoutThreshold; i++ {
		_, _ = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
	}

	*clock = clock.Add(cfg.LockoutDuration + time.Second)
	pair, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword})
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected a full token pair, got %+v", pair)
	}

	stored, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.FailedAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("success must clear the counter and lock, got attempts=%d locked=%v",
			stored.FailedAttempts, stored.LockedUntil)
	}
	if got := len(audit.byAction(model.ActionLoginSuccess)); got != 1 {
		t.Fatalf("expected one login_success entry, got %d", got)
	}

	// The counter restarted: one fresh failure does not re-lock.
	_, _ = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
	stored, _ = users.GetByID(ctx, user.ID)
	if stored.FailedAttempts != 1 {
		t.Fatalf("expected failure counter restarted at 1, got %d", stored.FailedAttempts)
	}
	if stored.LockedUntil != nil {
		t.Fatalf("one failure after reset must not lock the account")
	}
}

func TestAccountLockRevokesRefreshTokens(t *testing.T) {
	cfg := testConfig()
	svc, _, audit, user, _ := newAuthFixture(t, cfg)
	ctx := context.Background()

	pair, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	for i := 0; i < cfg.LockoutThreshold; i++ {
		_, _ = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
	}

	// The refresh token issued before the lock must be dead: a locked
	// account cannot keep minting access tokens through /refresh.
	if _, err := svc.tokens.Validate(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("lock must revoke outstanding refresh tokens, got %v", err)
	}
	if got := len(audit.byAction(model.ActionTokenRevoked)); got != 1 {
		t.Fatalf("expected one token_revoked entry from the lock, got %d", got)
	}
}

func TestLoginSuccessResetsCounter(t *testing.T) {
	cfg := testConfig()
	svc, users, _, user, _ := newAuthFixture(t, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.LockoutThreshold-1; i++ {
		_, _ = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword}); err != nil {
		t.Fatalf("login below threshold: %v", err)
	}

	stored, _ := users.GetByID(ctx, user.ID)
	if stored.FailedAttempts != 0 {
		t.Fatalf("success must reset the counter, got %d", stored.FailedAttempts)
	}
}

func TestLoginUnknownOrInactiveAccount(t *testing.T) {
	cfg := testConfig()
	svc, users, _, user, _ := newAuthFixture(t, cfg)
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginRequest{Email: "nobody@lab.test", Password: testPassword})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown account: expected ErrInvalidCredentials, got %v", err)
	}

	user.IsActive = false
	if err := users.Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	_, err = svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive account: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLockedExposesUnlockTimeWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.ExposeUnlockTime = true
	svc, _, _, user, clock := newAuthFixture(t, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.LockoutThreshold; i++ {
		_, _ = svc.Login(ctx, LoginRequest{Email: user.Email, Password: "wrong"})
	}

	_, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword})
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError, got %v", err)
	}
	if !locked.Until.Equal(clock.Add(cfg.LockoutDuration)) {
		t.Fatalf("unlock time = %v, want %v", locked.Until, clock.Add(cfg.LockoutDuration))
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("AccountLockedError must match ErrAccountLocked")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	cfg := testConfig()
	svc, _, _, user, _ := newAuthFixture(t, cfg)
	ctx := context.Background()

	pair, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, RefreshRequest{RefreshToken: pair.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh must rotate to a new token value")
	}

	// The consumed value is dead for good.
	if _, err := svc.Refresh(ctx, RefreshRequest{RefreshToken: pair.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for consumed value, got %v", err)
	}
	// The successor still works.
	if _, err := svc.Refresh(ctx, RefreshRequest{RefreshToken: refreshed.RefreshToken}); err != nil {
		t.Fatalf("successor refresh: %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	cfg := testConfig()
	svc, _, _, user, _ := newAuthFixture(t, cfg)
	ctx := context.Background()

	pair, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("repeated logout must be a no-op, got %v", err)
	}
}
