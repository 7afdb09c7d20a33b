package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/repository"
)

type UserService struct {
	accounts repository.AccountRepository
	cache    *cache.Cache
}

func NewUserService(accounts repository.AccountRepository, c *cache.Cache) *UserService {
	return &UserService{
		accounts: accounts,
		cache:    c,
	}
}

// GetMe prefers the cached profile and falls back to the account record.
func (s *UserService) GetMe(ctx context.Context, userID string) (*domain.User, error) {
	if cached := s.cache.GetUserData(ctx); cached != nil && cached.ID == userID {
		return cached, nil
	}

	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user := account.User
	return &user, nil
}

func (s *UserService) UpdateMe(ctx context.Context, userID string, req *domain.UpdateUserRequest) (*domain.User, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if req.Username != nil && !strings.EqualFold(*req.Username, account.Username) {
		taken, err := s.accounts.UsernameExists(ctx, *req.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return nil, ErrUsernameTaken
		}
		account.Username = *req.Username
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, account.Email) {
		taken, err := s.accounts.EmailExists(ctx, *req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
		account.Email = *req.Email
	}

	account.UpdatedAt = time.Now().UTC()
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	user := account.User
	if err := s.cache.StoreUserData(ctx, &user); err != nil {
		return nil, fmt.Errorf("failed to cache user: %w", err)
	}
	return &user, nil
}
