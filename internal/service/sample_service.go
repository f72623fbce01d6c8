package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateSampleRequest struct {
	SampleID    string `json:"sample_id" binding:"required"`
	GroupID     string `json:"group_id" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	Metadata    string `json:"metadata"`
	CollectedOn string `json:"collected_on"`
}

type UpdateSampleRequest struct {
	Status   string `json:"status"`
	Quantity string `json:"quantity"`
	Metadata string `json:"metadata"`
}

// SampleService is the gate every sample operation passes through. Reads and
// mutations are authorized per sample; listings push the scope down to the
// store as the OR-combined row filter.
type SampleService interface {
	Create(ctx context.Context, actorID uuid.UUID, req CreateSampleRequest) (*model.Sample, error)
	Get(ctx context.Context, actorID uuid.UUID, sampleID string) (*model.Sample, error)
	List(ctx context.Context, actorID uuid.UUID, page, limit int) ([]model.Sample, int64, error)
	Update(ctx context.Context, actorID uuid.UUID, sampleID string, req UpdateSampleRequest) (*model.Sample, error)
	Dispose(ctx context.Context, actorID uuid.UUID, sampleID string) (*model.Sample, error)
}

type sampleService struct {
	samples    repository.SampleRepository
	access     AccessService
	hierarchy  HierarchyService
	tx         repository.TransactionManager
	bypassRole string
}

func NewSampleService(samples repository.SampleRepository, access AccessService, hierarchy HierarchyService, tx repository.TransactionManager, bypassRole string) SampleService {
	return &sampleService{
		samples:    samples,
		access:     access,
		hierarchy:  hierarchy,
		tx:         tx,
		bypassRole: bypassRole,
	}
}

func (s *sampleService) Create(ctx context.Context, actorID uuid.UUID, req CreateSampleRequest) (*model.Sample, error) {
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("invalid group id: %w", err)
	}

	sample := &model.Sample{
		SampleID: req.SampleID,
		GroupID:  groupID,
		Type:     req.Type,
		Status:   model.SampleStatusRegistered,
		Unit:     req.Unit,
		Metadata: req.Metadata,
	}

	if req.Quantity != "" {
		qty, err := decimal.NewFromString(req.Quantity)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity: %w", err)
		}
		sample.Quantity = qty
	}
	if req.CollectedOn != "" {
		collected, err := time.Parse(time.RFC3339, req.CollectedOn)
		if err != nil {
			return nil, fmt.Errorf("invalid collected_on: %w", err)
		}
		sample.CollectedOn = &collected
	}

	// The decision and its audit record commit before the insert is
	// attempted, so the audit trail survives even if the insert fails.
	decision, err := s.access.AuthorizeGroup(ctx, actorID, groupID, req.SampleID, ActionCreate)
	if err != nil {
		return nil, err
	}
	if decision == Deny {
		return nil, ErrAccessDenied
	}

	if err := s.samples.Create(ctx, sample); err != nil {
		return nil, classify(err)
	}

	return sample, nil
}

func (s *sampleService) Get(ctx context.Context, actorID uuid.UUID, sampleID string) (*model.Sample, error) {
	sample, err := s.samples.GetBySampleID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}

	decision, err := s.access.Authorize(ctx, actorID, sample, ActionRead)
	if err != nil {
		return nil, err
	}
	if decision == Deny {
		return nil, ErrAccessDenied
	}

	return sample, nil
}

func (s *sampleService) List(ctx context.Context, actorID uuid.UUID, page, limit int) ([]model.Sample, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	reachable, err := s.hierarchy.AccessibleGroups(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	groupIDs := make([]uuid.UUID, 0, len(reachable))
	for id := range reachable {
		groupIDs = append(groupIDs, id)
	}

	samples, total, err := s.samples.ListScoped(ctx, actorID, groupIDs, s.bypassRole, page, limit)
	if err != nil {
		return nil, 0, classify(err)
	}
	return samples, total, nil
}

func (s *sampleService) Update(ctx context.Context, actorID uuid.UUID, sampleID string, req UpdateSampleRequest) (*model.Sample, error) {
	return s.mutate(ctx, actorID, sampleID, ActionUpdate, func(sample *model.Sample) error {
		if req.Status != "" {
			sample.Status = req.Status
		}
		if req.Quantity != "" {
			qty, err := decimal.NewFromString(req.Quantity)
			if err != nil {
				return fmt.Errorf("invalid quantity: %w", err)
			}
			sample.Quantity = qty
		}
		if req.Metadata != "" {
			sample.Metadata = req.Metadata
		}
		return nil
	})
}

func (s *sampleService) Dispose(ctx context.Context, actorID uuid.UUID, sampleID string) (*model.Sample, error) {
	return s.mutate(ctx, actorID, sampleID, ActionDelete, func(sample *model.Sample) error {
		now := time.Now()
		sample.Status = model.SampleStatusDisposed
		sample.DisposedOn = &now
		return nil
	})
}

func (s *sampleService) mutate(ctx context.Context, actorID uuid.UUID, sampleID, action string, apply func(*model.Sample) error) (*model.Sample, error) {
	sample, err := s.samples.GetBySampleID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}

	// The decision's audit record commits before the mutation runs; a denied
	// or failed mutation never takes the record down with it.
	decision, err := s.access.Authorize(ctx, actorID, sample, action)
	if err != nil {
		return nil, err
	}
	if decision == Deny {
		return nil, ErrAccessDenied
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := apply(sample); err != nil {
			return err
		}
		return s.samples.Update(txCtx, sample)
	})
	if err != nil {
		return nil, classify(err)
	}

	return sample, nil
}
