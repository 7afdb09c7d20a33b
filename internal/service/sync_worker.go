package service

import (
	"context"
	"time"

	"notes-sync-client/internal/cache"

	"github.com/rs/zerolog"
)

// SyncWorker drains the offline queue on a fixed interval while the device
// is online and the user has auto sync enabled.
type SyncWorker struct {
	notes    *NoteService
	network  NetworkStatus
	cache    *cache.Cache
	interval time.Duration
	logger   zerolog.Logger
}

func NewSyncWorker(notes *NoteService, network NetworkStatus, c *cache.Cache, interval time.Duration, logger zerolog.Logger) *SyncWorker {
	return &SyncWorker{
		notes:    notes,
		network:  network,
		cache:    c,
		interval: interval,
		logger:   logger.With().Str("component", "sync_worker").Logger(),
	}
}

func (w *SyncWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SyncWorker) tick(ctx context.Context) {
	if !w.network.IsOnline() || !w.cache.GetPreferences(ctx).AutoSync {
		return
	}
	if w.notes.PendingCount(ctx) == 0 {
		return
	}

	if _, err := w.notes.SyncOfflineOperations(ctx); err != nil {
		w.logger.Error().Err(err).Msg("periodic sync failed")
	}
}
