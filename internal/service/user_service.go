package service

import (
	"context"
	"fmt"

	"crmbilling/internal/model"
	"crmbilling/internal/repository"
)

type UserService struct {
	users repository.UserRepository
}

func NewUserService(uow repository.UnitOfWork) *UserService {
	return &UserService{users: uow.Repos().Users}
}

// Resolve returns the user for a verified email, creating a Free user on
// first sight.
func (s *UserService) Resolve(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetOrCreateByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", email, err)
	}
	return user, nil
}
