package repository

import (
	"context"

	"lims/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SampleRepository interface {
	Create(ctx context.Context, sample *model.Sample) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Sample, error)
	GetBySampleID(ctx context.Context, sampleID string) (*model.Sample, error)
	Update(ctx context.Context, sample *model.Sample) error

	// ListScoped returns samples visible to the user: samples whose owning
	// group is in the accessible set, OR any sample when the user holds the
	// bypass role. The two predicates are OR-combined, mirroring the
	// row-filtering the storage engine would apply itself.
	ListScoped(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID, bypassRole string, page, limit int) ([]model.Sample, int64, error)
}

type sampleRepository struct {
	db *gorm.DB
}

func NewSampleRepository(db *gorm.DB) SampleRepository {
	return &sampleRepository{db: db}
}

func (r *sampleRepository) Create(ctx context.Context, sample *model.Sample) error {
	return GetDB(ctx, r.db).Create(sample).Error
}

func (r *sampleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Sample, error) {
	var sample model.Sample
	if err := GetDB(ctx, r.db).First(&sample, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sample, nil
}

func (r *sampleRepository) GetBySampleID(ctx context.Context, sampleID string) (*model.Sample, error) {
	var sample model.Sample
	if err := GetDB(ctx, r.db).First(&sample, "sample_id = ?", sampleID).Error; err != nil {
		return nil, err
	}
	return &sample, nil
}

func (r *sampleRepository) Update(ctx context.Context, sample *model.Sample) error {
	return GetDB(ctx, r.db).Save(sample).Error
}

// scopePredicate is the row filter applied to listings. Satisfying either arm
// grants visibility; "OR", not "AND".
const scopePredicate = `samples.group_id IN (?) OR EXISTS (
	SELECT 1 FROM user_roles ur
	JOIN roles r ON r.id = ur.role_id
	WHERE ur.user_id = ? AND ur.is_active = true AND r.is_active = true AND r.name = ?
)`

func (r *sampleRepository) ListScoped(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID, bypassRole string, page, limit int) ([]model.Sample, int64, error) {
	var samples []model.Sample
	var total int64

	// An empty accessible set still has to let the bypass arm match.
	ids := groupIDs
	if len(ids) == 0 {
		ids = []uuid.UUID{uuid.Nil}
	}

	db := GetDB(ctx, r.db).Model(&model.Sample{}).Where(scopePredicate, ids, userID, bypassRole)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&samples).Error; err != nil {
		return nil, 0, err
	}

	return samples, total, nil
}
