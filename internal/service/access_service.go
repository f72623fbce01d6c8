package service

import (
	"context"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
)

// Decision is the outcome of an authorization check. Deny is not an error;
// it is a normal, reportable outcome the caller maps to an access-denied
// response.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// Actions evaluated by the access engine. Read-only actions skip the
// allow-side audit write; denials are always audited.
const (
	ActionRead   = "read"
	ActionList   = "list"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

func mutatingAction(action string) bool {
	return action != ActionRead && action != ActionList
}

// AccessService authorizes a principal's action on a sample. The decision
// rule is fixed: an active universal-bypass role grants access outright;
// otherwise the sample's owning group must be in the principal's accessible
// set. Satisfying either predicate grants access (OR, not AND), and the same
// rule is mirrored by SampleRepository.ListScoped when filtering is pushed
// down to the store.
type AccessService interface {
	Authorize(ctx context.Context, userID uuid.UUID, sample *model.Sample, action string) (Decision, error)
	// AuthorizeGroup applies the same rule to a group directly; used when
	// the sample does not exist yet (creation) or for group-level checks.
	AuthorizeGroup(ctx context.Context, userID, groupID uuid.UUID, resourceRef, action string) (Decision, error)
}

type accessService struct {
	roles      repository.RoleRepository
	hierarchy  HierarchyService
	audit      AuditService
	bypassRole string
}

func NewAccessService(roles repository.RoleRepository, hierarchy HierarchyService, audit AuditService, bypassRole string) AccessService {
	return &accessService{
		roles:      roles,
		hierarchy:  hierarchy,
		audit:      audit,
		bypassRole: bypassRole,
	}
}

func (s *accessService) Authorize(ctx context.Context, userID uuid.UUID, sample *model.Sample, action string) (Decision, error) {
	return s.AuthorizeGroup(ctx, userID, sample.GroupID, sample.SampleID, action)
}

func (s *accessService) AuthorizeGroup(ctx context.Context, userID, groupID uuid.UUID, resourceRef, action string) (Decision, error) {
	decision, err := s.evaluate(ctx, userID, groupID)
	if err != nil {
		return Deny, err
	}

	// A denial is always audited; an allow only when the action mutates.
	// The audit write must exist before the decision is reported: a failed
	// write fails the whole authorization.
	if decision == Deny {
		if err := s.audit.Record(ctx, &userID, model.ActionAccessDenied, map[string]any{
			"sample": resourceRef,
			"action": action,
		}); err != nil {
			return Deny, err
		}
	} else if mutatingAction(action) {
		if err := s.audit.Record(ctx, &userID, model.ActionAccessGranted, map[string]any{
			"sample": resourceRef,
			"action": action,
		}); err != nil {
			return Deny, err
		}
	}

	return decision, nil
}

func (s *accessService) evaluate(ctx context.Context, userID, groupID uuid.UUID) (Decision, error) {
	bypass, err := s.roles.UserHasActiveRole(ctx, userID, s.bypassRole)
	if err != nil {
		return Deny, classify(err)
	}
	if bypass {
		return Allow, nil
	}

	reachable, err := s.hierarchy.AccessibleGroups(ctx, userID)
	if err != nil {
		return Deny, err
	}
	if reachable[groupID] {
		return Allow, nil
	}

	return Deny, nil
}
