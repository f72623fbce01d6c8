package repository

import (
	"context"

	"lims/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	GetByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
	Update(ctx context.Context, role *model.Role) error

	AssignToUser(ctx context.Context, userID, roleID uuid.UUID) error
	SetAssignmentActive(ctx context.Context, userID, roleID uuid.UUID, active bool) error
	ListUserRoles(ctx context.Context, userID uuid.UUID) ([]model.Role, error)

	// UserHasActiveRole reports whether the user holds an active assignment
	// of an active role with the given name. This is the admin-bypass probe.
	UserHasActiveRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Order("name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Save(role).Error
}

func (r *roleRepository) AssignToUser(ctx context.Context, userID, roleID uuid.UUID) error {
	return GetDB(ctx, r.db).Create(&model.UserRole{
		UserID:   userID,
		RoleID:   roleID,
		IsActive: true,
	}).Error
}

func (r *roleRepository) SetAssignmentActive(ctx context.Context, userID, roleID uuid.UUID, active bool) error {
	res := GetDB(ctx, r.db).
		Model(&model.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		UpdateColumn("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roleRepository) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]model.Role, error) {
	var roles []model.Role
	err := GetDB(ctx, r.db).
		Joins("JOIN user_roles ur ON ur.role_id = roles.id").
		Where("ur.user_id = ? AND ur.is_active = true AND roles.is_active = true", userID).
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) UserHasActiveRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.UserRole{}).
		Joins("JOIN roles r ON r.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND user_roles.is_active = true AND r.is_active = true AND r.name = ?", userID, roleName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
