// Package cache is the typed layer over the key-value store. It owns one key
// per concern and serializes read-modify-write cycles on the shared keys so
// concurrent mutations cannot lose each other's updates.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/storage"

	"github.com/rs/zerolog"
)

const (
	KeyAuthToken         = "auth_token"
	KeyUserData          = "user_data"
	KeyNotes             = "notes"
	KeyOfflineOperations = "offline_operations"
	KeyDeadLetters       = "dead_letter_operations"
	KeyPreferences       = "user_preferences"
	KeyLastSyncedAt      = "last_synced_at"
)

// ErrSkipWrite lets a Modify callback abort without writing and without
// reporting a failure.
var ErrSkipWrite = errors.New("skip write")

type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type Cache struct {
	store  storage.Store
	logger zerolog.Logger

	notesMu sync.Mutex
	opsMu   sync.Mutex
	deadMu  sync.Mutex
}

func New(store storage.Store, logger zerolog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

func (c *Cache) read(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return false, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, &StorageError{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}

func (c *Cache) write(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := c.store.Set(ctx, key, string(data)); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c *Cache) remove(ctx context.Context, key string) error {
	if err := c.store.Remove(ctx, key); err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// GetCachedNotes never fails: storage errors are logged and read as empty.
func (c *Cache) GetCachedNotes(ctx context.Context) []domain.Note {
	notes, _ := c.LookupCachedNotes(ctx)
	return notes
}

// LookupCachedNotes also reports whether the collection was ever written.
// A populated collection stays populated after its last note is removed;
// only ClearAllData resets it.
func (c *Cache) LookupCachedNotes(ctx context.Context) ([]domain.Note, bool) {
	var notes []domain.Note
	ok, err := c.read(ctx, KeyNotes, &notes)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read cached notes")
		return []domain.Note{}, false
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	return notes, ok
}

// PopulateNotes writes notes only when the collection was never written and
// returns what the collection holds afterwards.
func (c *Cache) PopulateNotes(ctx context.Context, notes []domain.Note) ([]domain.Note, error) {
	c.notesMu.Lock()
	defer c.notesMu.Unlock()

	var current []domain.Note
	ok, err := c.read(ctx, KeyNotes, &current)
	if err != nil {
		return nil, err
	}
	if ok {
		if current == nil {
			current = []domain.Note{}
		}
		return current, nil
	}
	if err := c.writeNotes(ctx, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// CacheNotes replaces the whole collection in a single write.
func (c *Cache) CacheNotes(ctx context.Context, notes []domain.Note) error {
	c.notesMu.Lock()
	defer c.notesMu.Unlock()

	return c.writeNotes(ctx, notes)
}

func (c *Cache) writeNotes(ctx context.Context, notes []domain.Note) error {
	if notes == nil {
		notes = []domain.Note{}
	}
	return c.write(ctx, KeyNotes, notes)
}

// ModifyNotes runs fn over the current collection and writes the result while
// holding the notes writer lock. A read failure aborts instead of handing fn
// an empty slice, so a broken store can never be overwritten with nothing.
func (c *Cache) ModifyNotes(ctx context.Context, fn func(notes []domain.Note) ([]domain.Note, error)) error {
	c.notesMu.Lock()
	defer c.notesMu.Unlock()

	var notes []domain.Note
	if _, err := c.read(ctx, KeyNotes, &notes); err != nil {
		return err
	}

	updated, err := fn(notes)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.writeNotes(ctx, updated)
}

func (c *Cache) GetOfflineOperations(ctx context.Context) []domain.OfflineOperation {
	var ops []domain.OfflineOperation
	if _, err := c.read(ctx, KeyOfflineOperations, &ops); err != nil {
		c.logger.Error().Err(err).Msg("failed to read offline operations")
		return []domain.OfflineOperation{}
	}
	if ops == nil {
		return []domain.OfflineOperation{}
	}
	return ops
}

func (c *Cache) ModifyOfflineOperations(ctx context.Context, fn func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error)) error {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()

	return c.modifyOps(ctx, KeyOfflineOperations, fn)
}

func (c *Cache) modifyOps(ctx context.Context, key string, fn func([]domain.OfflineOperation) ([]domain.OfflineOperation, error)) error {
	var ops []domain.OfflineOperation
	if _, err := c.read(ctx, key, &ops); err != nil {
		return err
	}

	updated, err := fn(ops)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	if updated == nil {
		updated = []domain.OfflineOperation{}
	}
	return c.write(ctx, key, updated)
}

func (c *Cache) AddOfflineOperation(ctx context.Context, op domain.OfflineOperation) error {
	return c.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		return append(ops, op), nil
	})
}

// RemoveOfflineOperation drops the operation with id and keeps the relative
// order of the rest.
func (c *Cache) RemoveOfflineOperation(ctx context.Context, id string) error {
	return c.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		return removeOp(ops, id)
	})
}

// ReplaceOfflineOperation overwrites the stored copy of op in place.
func (c *Cache) ReplaceOfflineOperation(ctx context.Context, op domain.OfflineOperation) error {
	return c.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		for i := range ops {
			if ops[i].ID == op.ID {
				ops[i] = op
				return ops, nil
			}
		}
		return nil, ErrSkipWrite
	})
}

func (c *Cache) ClearOfflineOperations(ctx context.Context) error {
	c.opsMu.Lock()
	defer c.opsMu.Unlock()

	return c.remove(ctx, KeyOfflineOperations)
}

func (c *Cache) GetDeadLetters(ctx context.Context) []domain.OfflineOperation {
	var ops []domain.OfflineOperation
	if _, err := c.read(ctx, KeyDeadLetters, &ops); err != nil {
		c.logger.Error().Err(err).Msg("failed to read dead letters")
		return []domain.OfflineOperation{}
	}
	if ops == nil {
		return []domain.OfflineOperation{}
	}
	return ops
}

func (c *Cache) AddDeadLetter(ctx context.Context, op domain.OfflineOperation) error {
	c.deadMu.Lock()
	defer c.deadMu.Unlock()

	return c.modifyOps(ctx, KeyDeadLetters, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		return append(ops, op), nil
	})
}

// RemoveDeadLetter removes and returns the dead letter with id.
func (c *Cache) RemoveDeadLetter(ctx context.Context, id string) (domain.OfflineOperation, bool, error) {
	c.deadMu.Lock()
	defer c.deadMu.Unlock()

	var taken domain.OfflineOperation
	found := false
	err := c.modifyOps(ctx, KeyDeadLetters, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		for _, op := range ops {
			if op.ID == id {
				taken = op
				found = true
				break
			}
		}
		if !found {
			return nil, ErrSkipWrite
		}
		return removeOp(ops, id)
	})
	return taken, found, err
}

func removeOp(ops []domain.OfflineOperation, id string) ([]domain.OfflineOperation, error) {
	out := make([]domain.OfflineOperation, 0, len(ops))
	removed := false
	for _, op := range ops {
		if op.ID == id {
			removed = true
			continue
		}
		out = append(out, op)
	}
	if !removed {
		return nil, ErrSkipWrite
	}
	return out, nil
}

func (c *Cache) StoreAuthToken(ctx context.Context, token string) error {
	return c.write(ctx, KeyAuthToken, token)
}

// GetAuthToken returns "" when no session is stored.
func (c *Cache) GetAuthToken(ctx context.Context) string {
	var token string
	if _, err := c.read(ctx, KeyAuthToken, &token); err != nil {
		c.logger.Error().Err(err).Msg("failed to read auth token")
		return ""
	}
	return token
}

func (c *Cache) StoreUserData(ctx context.Context, user *domain.User) error {
	return c.write(ctx, KeyUserData, user)
}

// GetUserData returns nil when no profile is stored.
func (c *Cache) GetUserData(ctx context.Context) *domain.User {
	var user domain.User
	ok, err := c.read(ctx, KeyUserData, &user)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read user data")
		return nil
	}
	if !ok {
		return nil
	}
	return &user
}

func (c *Cache) ClearAuthData(ctx context.Context) error {
	if err := c.remove(ctx, KeyAuthToken); err != nil {
		return err
	}
	return c.remove(ctx, KeyUserData)
}

func (c *Cache) StorePreferences(ctx context.Context, prefs domain.Preferences) error {
	return c.write(ctx, KeyPreferences, prefs)
}

func (c *Cache) GetPreferences(ctx context.Context) domain.Preferences {
	prefs := domain.DefaultPreferences()
	if _, err := c.read(ctx, KeyPreferences, &prefs); err != nil {
		c.logger.Error().Err(err).Msg("failed to read preferences")
		return domain.DefaultPreferences()
	}
	return prefs
}

func (c *Cache) StoreLastSyncedAt(ctx context.Context, at time.Time) error {
	return c.write(ctx, KeyLastSyncedAt, at)
}

func (c *Cache) GetLastSyncedAt(ctx context.Context) *time.Time {
	var at time.Time
	ok, err := c.read(ctx, KeyLastSyncedAt, &at)
	if err != nil || !ok {
		return nil
	}
	return &at
}

// ClearAllData wipes the whole cache namespace in one store call. All writer
// locks are held so no mutation can land half before and half after.
func (c *Cache) ClearAllData(ctx context.Context) error {
	c.notesMu.Lock()
	defer c.notesMu.Unlock()
	c.opsMu.Lock()
	defer c.opsMu.Unlock()
	c.deadMu.Lock()
	defer c.deadMu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		return &StorageError{Op: "clear", Key: "*", Err: err}
	}
	return nil
}
