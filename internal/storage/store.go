// Package storage provides the durable string key-value primitive the cache
// layer is built on. Every store is bound to one namespace; Clear only wipes
// the keys of that namespace.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrClosed        = errors.New("store is closed")
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store is an asynchronous, string-keyed durable storage primitive.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear removes every key in the store's namespace.
	Clear(ctx context.Context) error

	Close() error
}

const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverCouch  = "couch"
	DriverRedis  = "redis"
)

type Config struct {
	Driver string

	// file
	Path string

	// sqlite
	SQLitePath string

	// couch
	CouchURL string
	CouchDB  string

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open returns a store for namespace using the configured driver.
func Open(ctx context.Context, cfg Config, namespace string) (Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	switch cfg.Driver {
	case DriverFile, "":
		return NewFileStore(cfg.Path, namespace)
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, namespace)
	case DriverCouch:
		return NewCouchStore(ctx, cfg.CouchURL, cfg.CouchDB, namespace)
	case DriverRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, namespace)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
