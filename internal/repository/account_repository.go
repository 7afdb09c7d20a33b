package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/storage"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// accountRepository keeps one document per account plus lookup keys for
// email and username, all in the accounts namespace.
type accountRepository struct {
	store storage.Store
	mu    sync.Mutex
}

func NewAccountRepository(store storage.Store) AccountRepository {
	return &accountRepository{store: store}
}

func accountKey(id string) string { return fmt.Sprintf("account:%s", id) }

func emailKey(email string) string { return fmt.Sprintf("email:%s", strings.ToLower(email)) }

func usernameKey(username string) string {
	return fmt.Sprintf("username:%s", strings.ToLower(username))
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.put(ctx, account); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) put(ctx context.Context, account *domain.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, accountKey(account.ID), string(data)); err != nil {
		return err
	}
	if err := r.store.Set(ctx, emailKey(account.Email), account.ID); err != nil {
		return err
	}
	return r.store.Set(ctx, usernameKey(account.Username), account.ID)
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	raw, ok, err := r.store.Get(ctx, accountKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	if !ok {
		return nil, ErrAccountNotFound
	}

	var account domain.Account
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) findByIndex(ctx context.Context, key string) (*domain.Account, error) {
	id, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query account index: %w", err)
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findByIndex(ctx, emailKey(email))
}

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findByIndex(ctx, usernameKey(username))
}

// Update rewrites the account and moves its lookup keys when email or
// username changed.
func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.FindByID(ctx, account.ID)
	if err != nil {
		return err
	}

	if err := r.put(ctx, account); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	if !strings.EqualFold(existing.Email, account.Email) {
		if err := r.store.Remove(ctx, emailKey(existing.Email)); err != nil {
			return fmt.Errorf("failed to drop old email index: %w", err)
		}
	}
	if !strings.EqualFold(existing.Username, account.Username) {
		if err := r.store.Remove(ctx, usernameKey(existing.Username)); err != nil {
			return fmt.Errorf("failed to drop old username index: %w", err)
		}
	}
	return nil
}

func (r *accountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, emailKey(email))
}

func (r *accountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, usernameKey(username))
}

func (r *accountRepository) exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check account index: %w", err)
	}
	return ok, nil
}
