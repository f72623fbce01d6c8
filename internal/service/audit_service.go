package service

import (
	"context"
	"encoding/json"
	"fmt"

	"lims/internal/model"
	"lims/internal/repository"
	"lims/internal/websocket"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	UserEmail string         `json:"user_email,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// EventBroadcaster pushes security events to connected dashboards.
type EventBroadcaster interface {
	BroadcastEvent(event websocket.SecurityEvent)
}

// AuditService is the append-only trail every other component writes to. A
// failed Record is fatal for the triggering operation: when it happens inside
// a transaction the whole transaction rolls back, so a decision never takes
// effect without its audit record.
type AuditService interface {
	Record(ctx context.Context, userID *uuid.UUID, action string, details map[string]any) error
	List(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]AuditLogResponse, int64, error)
	Annotate(ctx context.Context, id uuid.UUID, details map[string]any) error
}

type auditService struct {
	repo repository.AuditRepository
	hub  EventBroadcaster // optional; security events are pushed to connected dashboards
}

// NewAuditService creates a new AuditService instance. hub may be nil.
func NewAuditService(repo repository.AuditRepository, hub EventBroadcaster) AuditService {
	return &auditService{repo: repo, hub: hub}
}

func (s *auditService) Record(ctx context.Context, userID *uuid.UUID, action string, details map[string]any) error {
	var payload string
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		payload = string(data)
	}

	entry := &model.AuditLog{
		UserID:  userID,
		Action:  action,
		Details: payload,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return classify(err)
	}

	s.notify(ctx, userID, action, details)
	return nil
}

// notify pushes security-relevant events to the websocket hub. When the
// append ran inside a transaction the push is deferred to commit time, so a
// rollback never leaves dashboards with an event that has no durable record.
func (s *auditService) notify(ctx context.Context, userID *uuid.UUID, action string, details map[string]any) {
	if s.hub == nil {
		return
	}
	switch action {
	case model.ActionAccountLocked, model.ActionAccessDenied, model.ActionLoginWhileLocked:
		actor := ""
		if userID != nil {
			actor = userID.String()
		}
		repository.AfterCommit(ctx, func() {
			s.hub.BroadcastEvent(websocket.SecurityEvent{
				Type:    action,
				UserID:  actor,
				Details: details,
			})
		})
	}
}

func (s *auditService) List(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, classify(err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		entry := AuditLogResponse{
			ID:        l.ID.String(),
			Action:    l.Action,
			Timestamp: l.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		}
		if l.UserID != nil {
			entry.UserID = l.UserID.String()
		}
		if l.User != nil {
			entry.UserEmail = l.User.Email
		}
		if l.Details != "" {
			var details map[string]any
			if err := json.Unmarshal([]byte(l.Details), &details); err == nil {
				entry.Details = details
			}
		}
		if l.UpdatedAt != nil {
			entry.UpdatedAt = l.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		res = append(res, entry)
	}

	return res, total, nil
}

func (s *auditService) Annotate(ctx context.Context, id uuid.UUID, details map[string]any) error {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode annotation: %w", err)
	}
	return classify(s.repo.Annotate(ctx, id, string(data)))
}
