package service

import (
	"context"
	"sync"
	"time"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory fakes standing in for the gorm repositories. They honor the same
// contracts the real implementations get from the schema: unique token
// values, row counts on delete, not-found as gorm.ErrRecordNotFound.

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type auditEntry struct {
	userID  *uuid.UUID
	action  string
	details map[string]any
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
	failing bool
}

func (f *fakeAudit) Record(_ context.Context, userID *uuid.UUID, action string, details map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return ErrStoreUnavailable
	}
	f.entries = append(f.entries, auditEntry{userID: userID, action: action, details: details})
	return nil
}

func (f *fakeAudit) List(context.Context, repository.AuditFilter, int, int) ([]AuditLogResponse, int64, error) {
	return nil, 0, nil
}

func (f *fakeAudit) Annotate(context.Context, uuid.UUID, map[string]any) error { return nil }

func (f *fakeAudit) byAction(action string) []auditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auditEntry
	for _, e := range f.entries {
		if e.action == action {
			out = append(out, e)
		}
	}
	return out
}

type fakeRoleRepo struct {
	// userID -> set of active role names
	activeRoles map[uuid.UUID]map[string]bool
}

func (f *fakeRoleRepo) Create(context.Context, *model.Role) error { return nil }
func (f *fakeRoleRepo) GetByID(context.Context, uuid.UUID) (*model.Role, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeRoleRepo) GetByName(context.Context, string) (*model.Role, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeRoleRepo) List(context.Context) ([]model.Role, error)               { return nil, nil }
func (f *fakeRoleRepo) Update(context.Context, *model.Role) error                { return nil }
func (f *fakeRoleRepo) AssignToUser(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (f *fakeRoleRepo) SetAssignmentActive(context.Context, uuid.UUID, uuid.UUID, bool) error {
	return nil
}
func (f *fakeRoleRepo) ListUserRoles(context.Context, uuid.UUID) ([]model.Role, error) {
	return nil, nil
}

func (f *fakeRoleRepo) UserHasActiveRole(_ context.Context, userID uuid.UUID, roleName string) (bool, error) {
	return f.activeRoles[userID][roleName], nil
}

type fakeGroupRepo struct {
	groups      []model.Group
	memberships map[uuid.UUID][]uuid.UUID // userID -> active group ids
	listErr     error                     // returned by ListUserGroupIDs when set
}

func (f *fakeGroupRepo) Create(_ context.Context, g *model.Group) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	f.groups = append(f.groups, *g)
	return nil
}

func (f *fakeGroupRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Group, error) {
	for i := range f.groups {
		if f.groups[i].ID == id {
			g := f.groups[i]
			return &g, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeGroupRepo) GetByName(_ context.Context, name string) (*model.Group, error) {
	for i := range f.groups {
		if f.groups[i].Name == name {
			g := f.groups[i]
			return &g, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeGroupRepo) List(context.Context) ([]model.Group, error) { return f.groups, nil }

func (f *fakeGroupRepo) Update(_ context.Context, g *model.Group) error {
	for i := range f.groups {
		if f.groups[i].ID == g.ID {
			f.groups[i] = *g
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeGroupRepo) ListActive(context.Context) ([]model.Group, error) {
	var out []model.Group
	for _, g := range f.groups {
		if g.IsActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGroupRepo) ListUserGroupIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.memberships[userID], nil
}

func (f *fakeGroupRepo) AssignUser(_ context.Context, userID, groupID uuid.UUID) error {
	f.memberships[userID] = append(f.memberships[userID], groupID)
	return nil
}

func (f *fakeGroupRepo) SetMembershipActive(context.Context, uuid.UUID, uuid.UUID, bool) error {
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) List(context.Context, int, int) ([]model.User, int64, error) {
	return nil, 0, nil
}

func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) RecordFailedAttempt(_ context.Context, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	u.FailedAttempts++
	return u.FailedAttempts, nil
}

func (f *fakeUserRepo) LockAccount(_ context.Context, id uuid.UUID, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.LockedUntil = &until
	u.FailedAttempts = 0
	return nil
}

func (f *fakeUserRepo) ResetFailures(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.LockedUntil = nil
	u.FailedAttempts = 0
	return nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (f *fakeTokenRepo) Create(_ context.Context, t *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.tokens[t.Token]; exists {
		return gorm.ErrDuplicatedKey
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	copied := *t
	f.tokens[t.Token] = &copied
	return nil
}

func (f *fakeTokenRepo) GetByValue(_ context.Context, value string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[value]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTokenRepo) DeleteByValue(_ context.Context, value string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[value]; !ok {
		return 0, nil
	}
	delete(f.tokens, value)
	return 1, nil
}

func (f *fakeTokenRepo) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for value, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, value)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for value, t := range f.tokens {
		if !now.Before(t.ExpiresAt) {
			delete(f.tokens, value)
			n++
		}
	}
	return n, nil
}
