package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string          `json:"name" binding:"required"`
	Permissions map[string]bool `json:"permissions"`
}

type UpdateRoleRequest struct {
	Permissions map[string]bool `json:"permissions"`
	IsActive    *bool           `json:"is_active"`
}

type RoleResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Permissions map[string]bool `json:"permissions,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   string          `json:"created_at"`
}

type RoleService interface {
	Create(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*RoleResponse, error)
	List(ctx context.Context) ([]RoleResponse, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRoleRequest) (*RoleResponse, error)
	AssignToUser(ctx context.Context, actorID, userID, roleID uuid.UUID) error
	SetAssignmentActive(ctx context.Context, userID, roleID uuid.UUID, active bool) error
}

type roleService struct {
	repo  repository.RoleRepository
	audit AuditService
	tx    repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, audit AuditService, tx repository.TransactionManager) RoleService {
	return &roleService{repo: repo, audit: audit, tx: tx}
}

func toRoleResponse(r *model.Role) (*RoleResponse, error) {
	resp := &RoleResponse{
		ID:        r.ID.String(),
		Name:      r.Name,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.Permissions != "" {
		if err := json.Unmarshal([]byte(r.Permissions), &resp.Permissions); err != nil {
			return nil, fmt.Errorf("corrupt permissions payload for role %s: %w", r.Name, err)
		}
	}
	return resp, nil
}

func (s *roleService) Create(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	role := &model.Role{
		Name:     req.Name,
		IsActive: true,
	}
	if len(req.Permissions) > 0 {
		data, err := json.Marshal(req.Permissions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode permissions: %w", err)
		}
		role.Permissions = string(data)
	}

	if err := s.repo.Create(ctx, role); err != nil {
		return nil, classify(err)
	}
	return toRoleResponse(role)
}

func (s *roleService) Get(ctx context.Context, id uuid.UUID) (*RoleResponse, error) {
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	return toRoleResponse(role)
}

func (s *roleService) List(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, classify(err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		resp, err := toRoleResponse(&roles[i])
		if err != nil {
			return nil, err
		}
		res = append(res, *resp)
	}
	return res, nil
}

func (s *roleService) Update(ctx context.Context, id uuid.UUID, req UpdateRoleRequest) (*RoleResponse, error) {
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}

	if req.Permissions != nil {
		data, err := json.Marshal(req.Permissions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode permissions: %w", err)
		}
		role.Permissions = string(data)
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, role); err != nil {
		return nil, classify(err)
	}
	return toRoleResponse(role)
}

func (s *roleService) AssignToUser(ctx context.Context, actorID, userID, roleID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.AssignToUser(txCtx, userID, roleID); err != nil {
			return err
		}
		return s.audit.Record(txCtx, &actorID, model.ActionRoleAssigned, map[string]any{
			"user_id": userID.String(),
			"role_id": roleID.String(),
		})
	})
	return classify(err)
}

func (s *roleService) SetAssignmentActive(ctx context.Context, userID, roleID uuid.UUID, active bool) error {
	return classify(s.repo.SetAssignmentActive(ctx, userID, roleID, active))
}
