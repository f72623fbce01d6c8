package service

import (
	"context"
	"errors"
	"fmt"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateGroupRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	ParentGroupID string `json:"parent_group_id"`
}

type UpdateGroupRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	ParentGroupID *string `json:"parent_group_id"` // nil: unchanged, "": detach, uuid: reparent
	IsActive      *bool   `json:"is_active"`
}

type GroupResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ParentGroupID string `json:"parent_group_id,omitempty"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
}

// GroupService manages the group forest and user memberships. Parent
// assignments are validated at write time: an update that would make a group
// its own ancestor is rejected, in addition to the resolver's defensive
// runtime check. Every write invalidates the hierarchy cache.
type GroupService interface {
	Create(ctx context.Context, actorID uuid.UUID, req CreateGroupRequest) (*GroupResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*GroupResponse, error)
	List(ctx context.Context) ([]GroupResponse, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateGroupRequest) (*GroupResponse, error)
	AssignUser(ctx context.Context, actorID, userID, groupID uuid.UUID) error
	SetMembershipActive(ctx context.Context, userID, groupID uuid.UUID, active bool) error
}

type groupService struct {
	repo      repository.GroupRepository
	hierarchy HierarchyService
	audit     AuditService
	tx        repository.TransactionManager
}

func NewGroupService(repo repository.GroupRepository, hierarchy HierarchyService, audit AuditService, tx repository.TransactionManager) GroupService {
	return &groupService{repo: repo, hierarchy: hierarchy, audit: audit, tx: tx}
}

func toGroupResponse(g *model.Group) *GroupResponse {
	resp := &GroupResponse{
		ID:          g.ID.String(),
		Name:        g.Name,
		Description: g.Description,
		IsActive:    g.IsActive,
		CreatedAt:   g.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if g.ParentGroupID != nil {
		resp.ParentGroupID = g.ParentGroupID.String()
	}
	return resp
}

func (s *groupService) Create(ctx context.Context, actorID uuid.UUID, req CreateGroupRequest) (*GroupResponse, error) {
	group := &model.Group{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}

	if req.ParentGroupID != "" {
		parentID, err := uuid.Parse(req.ParentGroupID)
		if err != nil {
			return nil, fmt.Errorf("invalid parent group id: %w", err)
		}
		if _, err := s.repo.GetByID(ctx, parentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, classify(err)
		}
		group.ParentGroupID = &parentID
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, group); err != nil {
			return err
		}
		return s.audit.Record(txCtx, &actorID, model.ActionGroupCreated, map[string]any{
			"group": group.Name,
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	s.hierarchy.InvalidateAll()
	return toGroupResponse(group), nil
}

func (s *groupService) Get(ctx context.Context, id uuid.UUID) (*GroupResponse, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	return toGroupResponse(group), nil
}

func (s *groupService) List(ctx context.Context) ([]GroupResponse, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	res := make([]GroupResponse, 0, len(groups))
	for i := range groups {
		res = append(res, *toGroupResponse(&groups[i]))
	}
	return res, nil
}

func (s *groupService) Update(ctx context.Context, id uuid.UUID, req UpdateGroupRequest) (*GroupResponse, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}

	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Description != "" {
		group.Description = req.Description
	}
	if req.IsActive != nil {
		group.IsActive = *req.IsActive
	}
	if req.ParentGroupID != nil {
		if *req.ParentGroupID == "" {
			group.ParentGroupID = nil
		} else {
			parentID, err := uuid.Parse(*req.ParentGroupID)
			if err != nil {
				return nil, fmt.Errorf("invalid parent group id: %w", err)
			}
			if err := s.checkNoCycle(ctx, id, parentID); err != nil {
				return nil, err
			}
			group.ParentGroupID = &parentID
		}
	}

	if err := s.repo.Update(ctx, group); err != nil {
		return nil, classify(err)
	}

	s.hierarchy.InvalidateAll()
	return toGroupResponse(group), nil
}

// checkNoCycle walks the ancestor chain of the proposed parent; if it reaches
// the group being reparented, the assignment would close a loop.
func (s *groupService) checkNoCycle(ctx context.Context, groupID, parentID uuid.UUID) error {
	seen := map[uuid.UUID]bool{}
	current := parentID
	for {
		if current == groupID {
			return fmt.Errorf("%w: parent assignment would create a cycle", ErrConflict)
		}
		if seen[current] {
			// Pre-existing loop in the stored chain; refuse to extend it.
			return fmt.Errorf("%w: group hierarchy already contains a cycle", ErrConflict)
		}
		seen[current] = true

		parent, err := s.repo.GetByID(ctx, current)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return classify(err)
		}
		if parent.ParentGroupID == nil {
			return nil
		}
		current = *parent.ParentGroupID
	}
}

func (s *groupService) AssignUser(ctx context.Context, actorID, userID, groupID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.AssignUser(txCtx, userID, groupID); err != nil {
			return err
		}
		return s.audit.Record(txCtx, &actorID, model.ActionGroupAssigned, map[string]any{
			"user_id":  userID.String(),
			"group_id": groupID.String(),
		})
	})
	if err != nil {
		return classify(err)
	}

	s.hierarchy.Invalidate(userID)
	return nil
}

func (s *groupService) SetMembershipActive(ctx context.Context, userID, groupID uuid.UUID, active bool) error {
	if err := s.repo.SetMembershipActive(ctx, userID, groupID, active); err != nil {
		return classify(err)
	}
	s.hierarchy.Invalidate(userID)
	return nil
}
