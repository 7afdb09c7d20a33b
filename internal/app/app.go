// Package app wires the engine, its stores and the local API together. The
// object graph is built once per process and handed out explicitly.
package app

import (
	"context"
	"errors"
	"fmt"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/config"
	"notes-sync-client/internal/network"
	"notes-sync-client/internal/queue"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/repository"
	"notes-sync-client/internal/service"
	"notes-sync-client/internal/storage"
	"notes-sync-client/internal/websocket"

	"github.com/rs/zerolog"
)

const (
	NamespaceCache    = "cache"
	NamespaceAccounts = "accounts"
)

type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Cache   *cache.Cache
	Queue   *queue.Queue
	Remote  remote.NoteSource
	Monitor *network.Monitor

	Notes       *service.NoteService
	Auth        *service.AuthService
	Users       *service.UserService
	Preferences *service.PreferenceService
	Broadcast   *service.BroadcastService
	Worker      *service.SyncWorker
	WebSocket   *websocket.Manager

	stores      []storage.Store
	unsubscribe func()
}

type options struct {
	probe  network.Probe
	remote remote.NoteSource
}

type Option func(*options)

// WithProbe replaces the HTTP reachability probe, e.g. with a StaticProbe.
func WithProbe(p network.Probe) Option {
	return func(o *options) { o.probe = p }
}

// WithRemote replaces the HTTP note source.
func WithRemote(src remote.NoteSource) Option {
	return func(o *options) { o.remote = src }
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	cacheStore, err := storage.Open(ctx, cfg.Store, NamespaceCache)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	accountStore, err := storage.Open(ctx, cfg.Store, NamespaceAccounts)
	if err != nil {
		cacheStore.Close()
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		stores: []storage.Store{cacheStore, accountStore},
	}

	a.Cache = cache.New(cacheStore, logger)
	a.Queue = queue.New(a.Cache, queue.Config{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffMax:  cfg.Sync.BackoffMax,
	}, logger)

	a.Remote = o.remote
	if a.Remote == nil {
		a.Remote = remote.NewClient(remote.Config{
			BaseURL:      cfg.Remote.BaseURL,
			Timeout:      cfg.Remote.Timeout,
			ReadOnly:     cfg.Remote.ReadOnly,
			AssumedTotal: cfg.Remote.AssumedTotal,
		}, logger)
	}

	probe := o.probe
	if probe == nil {
		probe = network.NewHTTPProbe(cfg.Network.ProbeURL, cfg.Network.ProbeTimeout)
	}
	a.Monitor = network.NewMonitor(probe, cfg.Network.ProbeInterval, logger)

	a.Notes = service.NewNoteService(a.Cache, a.Queue, a.Remote, a.Monitor, logger)
	// The first probe sets the starting state; only later flips reach the
	// engine as reconnects.
	a.Monitor.Refresh(ctx)
	a.unsubscribe = a.Monitor.Subscribe(a.Notes.HandleNetworkChange)

	accounts := repository.NewAccountRepository(accountStore)
	a.Auth = service.NewAuthService(accounts, a.Cache, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration, logger)
	a.Users = service.NewUserService(accounts, a.Cache)
	a.Preferences = service.NewPreferenceService(a.Cache)

	a.WebSocket = websocket.NewManager(websocket.Options{
		MaxConnPerUser: cfg.WebSocket.MaxConnPerUser,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, logger)
	a.Broadcast = service.NewBroadcastService(a.WebSocket, a.Notes, logger)
	a.WebSocket.SetMessageHandler(a.Broadcast)
	a.Notes.SetNotifier(a.Broadcast)

	a.Worker = service.NewSyncWorker(a.Notes, a.Monitor, a.Cache, cfg.Sync.Interval, logger)

	return a, nil
}

// Start drains what earlier runs left queued when the device is still
// online, then runs the background loops until ctx is done.
func (a *App) Start(ctx context.Context) {
	wasOnline := a.Monitor.IsOnline()
	if a.Monitor.Refresh(ctx).Online() && wasOnline && a.Notes.PendingCount(ctx) > 0 {
		a.Notes.RequestSync()
	}

	go a.WebSocket.Run()
	go a.Monitor.Run(ctx)
	go a.Worker.Run(ctx)
}

// Close stops listening for network changes, waits for running drains and
// closes the stores.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.WebSocket.Shutdown()
	a.Notes.Wait()

	var errs []error
	for _, s := range a.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
