package repository

import (
	"context"

	"lims/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Group, error)
	GetByName(ctx context.Context, name string) (*model.Group, error)
	List(ctx context.Context) ([]model.Group, error)
	Update(ctx context.Context, group *model.Group) error

	// ListActive returns every active group; the hierarchy resolver builds its
	// adjacency structure from this one scan.
	ListActive(ctx context.Context) ([]model.Group, error)
	// ListUserGroupIDs returns the ids of groups the user is directly and
	// actively associated with.
	ListUserGroupIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	AssignUser(ctx context.Context, userID, groupID uuid.UUID) error
	SetMembershipActive(ctx context.Context, userID, groupID uuid.UUID, active bool) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *model.Group) error {
	return GetDB(ctx, r.db).Create(group).Error
}

func (r *groupRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var group model.Group
	if err := GetDB(ctx, r.db).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) GetByName(ctx context.Context, name string) (*model.Group, error) {
	var group model.Group
	if err := GetDB(ctx, r.db).First(&group, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) List(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := GetDB(ctx, r.db).Order("name asc").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) Update(ctx context.Context, group *model.Group) error {
	return GetDB(ctx, r.db).Save(group).Error
}

func (r *groupRepository) ListActive(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := GetDB(ctx, r.db).Where("is_active = true").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) ListUserGroupIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).
		Model(&model.UserGroup{}).
		Where("user_id = ? AND is_active = true", userID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *groupRepository) AssignUser(ctx context.Context, userID, groupID uuid.UUID) error {
	return GetDB(ctx, r.db).Create(&model.UserGroup{
		UserID:   userID,
		GroupID:  groupID,
		IsActive: true,
	}).Error
}

func (r *groupRepository) SetMembershipActive(ctx context.Context, userID, groupID uuid.UUID, active bool) error {
	res := GetDB(ctx, r.db).
		Model(&model.UserGroup{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		UpdateColumn("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
