package service

import (
	"context"
	"errors"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/repository"
	"github.com/mirkodev/notes-service/internal/security"
)

// UserUpdate enumerates the fields a user may change on their own record.
// Nil means "leave unchanged"; there is no generic attribute patching.
type UserUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// AdminUserUpdate additionally allows role and disabled changes.
type AdminUserUpdate struct {
	UserUpdate
	Role     *string `json:"role"`
	Disabled *bool   `json:"disabled"`
}

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	if _, err := s.users.FindByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.FindByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List()
}

func (s *UserService) Update(ctx context.Context, id uint, update UserUpdate) (*domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyUpdate(user, update); err != nil {
		return nil, err
	}
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) AdminUpdate(ctx context.Context, id uint, update AdminUserUpdate) (*domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyUpdate(user, update.UserUpdate); err != nil {
		return nil, err
	}
	if update.Role != nil {
		if *update.Role != domain.RoleUser && *update.Role != domain.RoleAdmin {
			return nil, ErrForbidden
		}
		user.Role = *update.Role
	}
	if update.Disabled != nil {
		user.Disabled = *update.Disabled
	}
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) applyUpdate(user *domain.User, update UserUpdate) error {
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Password != nil {
		hash, err := security.HashPassword(*update.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	return nil
}

// Delete removes the user and, through the repository transaction, all
// owned sessions, notes and share links.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	err := s.users.Delete(id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}
