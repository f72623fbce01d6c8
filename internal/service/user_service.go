package service

import (
	"context"
	"errors"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for request validation
type SignupRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type UpdateUserRequest struct {
	Email     string `json:"email" binding:"omitempty,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DTO for returning User without exposing credential or counter state
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// UserService covers the account lifecycle: signup creates an inactive
// account which an admin must activate before it can authenticate.
type UserService interface {
	Signup(ctx context.Context, req SignupRequest) (*UserResponse, error)
	Activate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*UserResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	List(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
}

type userService struct {
	repo  repository.UserRepository
	audit AuditService
	tx    repository.TransactionManager
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, audit AuditService, tx repository.TransactionManager) UserService {
	return &userService{repo: repo, audit: audit, tx: tx}
}

func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *userService) Signup(ctx context.Context, req SignupRequest) (*UserResponse, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(hashed),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     false, // Pending admin approval
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, user); err != nil {
			return err
		}
		return s.audit.Record(txCtx, &user.ID, model.ActionUserRegistered, map[string]any{
			"email": user.Email,
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	return mapToResponse(user), nil
}

func (s *userService) Activate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*UserResponse, error) {
	var user *model.User

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if user.IsActive {
			return nil
		}
		user.IsActive = true
		if err := s.repo.Update(txCtx, user); err != nil {
			return err
		}
		return s.audit.Record(txCtx, &actorID, model.ActionUserActivated, map[string]any{
			"user_id": id.String(),
		})
	})
	if err != nil {
		return nil, classify(err)
	}

	return mapToResponse(user), nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	return mapToResponse(user), nil
}

func (s *userService) List(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, classify(err)
	}

	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, *mapToResponse(&u))
	}

	return responses, total, nil
}

func (s *userService) Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}

	if req.Email != "" {
		user.Email = req.Email
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, classify(err)
	}

	return mapToResponse(user), nil
}
