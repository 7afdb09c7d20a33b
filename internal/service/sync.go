package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/queue"
	"notes-sync-client/internal/remote"
)

// SyncOfflineOperations drains the offline queue. It does nothing while
// offline. Against a read-only remote every operation is visited and
// dropped without replay.
func (s *NoteService) SyncOfflineOperations(ctx context.Context) (*domain.SyncReport, error) {
	if !s.network.IsOnline() {
		return &domain.SyncReport{
			Skipped:   true,
			Remaining: s.queue.Len(ctx),
		}, nil
	}

	result, err := s.queue.Drain(ctx, s.replay)
	report := &domain.SyncReport{
		Visited:      result.Visited,
		Confirmed:    result.Confirmed,
		Attempted:    result.Attempted,
		Failed:       result.Failed,
		DeadLettered: result.DeadLettered,
		Remaining:    result.Remaining,
		SyncedAt:     s.now().UTC(),
	}
	if err != nil {
		return report, fmt.Errorf("failed to drain offline queue: %w", err)
	}

	if serr := s.cache.StoreLastSyncedAt(ctx, report.SyncedAt); serr != nil {
		s.logger.Error().Err(serr).Msg("failed to record sync time")
	}

	s.logger.Info().
		Int("visited", report.Visited).
		Int("confirmed", report.Confirmed).
		Int("attempted", report.Attempted).
		Int("failed", report.Failed).
		Int("dead_lettered", report.DeadLettered).
		Int("remaining", report.Remaining).
		Msg("offline queue drained")
	s.notifier.SyncCompleted(report)
	return report, nil
}

func (s *NoteService) replay(ctx context.Context, op domain.OfflineOperation) (queue.ReplayResult, error) {
	if s.remote.ReadOnly() {
		return queue.ReplayResult{}, queue.ErrSkipReplay
	}

	switch op.Kind {
	case domain.OperationCreate:
		return s.replayCreate(ctx, op)
	case domain.OperationUpdate:
		return queue.ReplayResult{}, s.replayUpdate(ctx, op)
	case domain.OperationDelete:
		err := s.remote.Delete(ctx, op.NoteID, op.ID)
		if isNotFound(err) {
			return queue.ReplayResult{}, nil
		}
		return queue.ReplayResult{}, err
	default:
		s.logger.Warn().Str("op_id", op.ID).Str("kind", string(op.Kind)).Msg("unknown operation kind")
		return queue.ReplayResult{}, queue.ErrSkipReplay
	}
}

// replayCreate sends the latest cached copy of the note, or the queued
// snapshot when the note is gone locally, and adopts the id the remote
// assigned.
func (s *NoteService) replayCreate(ctx context.Context, op domain.OfflineOperation) (queue.ReplayResult, error) {
	note, found := s.findCached(ctx, op.NoteID)
	if !found {
		if err := op.DecodePayload(&note); err != nil {
			return queue.ReplayResult{}, fmt.Errorf("failed to decode create payload: %w", err)
		}
		note.ID = op.NoteID
	}

	created, err := s.remote.Create(ctx, note, op.ID)
	if err != nil {
		return queue.ReplayResult{}, err
	}
	if created.ID == "" || created.ID == op.NoteID {
		return queue.ReplayResult{}, nil
	}

	if found {
		s.adoptID(ctx, op.NoteID, created.ID)
	}
	return queue.ReplayResult{AdoptedID: created.ID}, nil
}

func (s *NoteService) replayUpdate(ctx context.Context, op domain.OfflineOperation) error {
	note, found := s.findCached(ctx, op.NoteID)
	if !found {
		// Deleted locally after the update; the queued DELETE follows.
		return queue.ErrSkipReplay
	}

	_, err := s.remote.Update(ctx, note, op.ID)
	return err
}

func (s *NoteService) adoptID(ctx context.Context, oldID, newID string) {
	var adopted *domain.Note
	err := s.cache.ModifyNotes(ctx, func(current []domain.Note) ([]domain.Note, error) {
		for i := range current {
			if current[i].ID == oldID {
				current[i].ID = newID
				n := current[i]
				adopted = &n
				return current, nil
			}
		}
		return nil, cache.ErrSkipWrite
	})
	if err != nil {
		s.logger.Error().Err(err).Str("note_id", oldID).Str("server_id", newID).Msg("failed to adopt server id")
		return
	}
	if adopted != nil {
		s.logger.Info().Str("note_id", oldID).Str("server_id", newID).Msg("adopted server id")
		s.notifier.NoteDeleted(oldID)
		s.notifier.NoteCreated(adopted)
	}
}

// RetryDeadLetter puts a dead operation back at the tail of the queue.
func (s *NoteService) RetryDeadLetter(ctx context.Context, opID string) (*domain.OfflineOperation, error) {
	op, err := s.queue.Requeue(ctx, opID)
	if err != nil {
		return nil, err
	}
	s.kickSync()
	return &op, nil
}

func (s *NoteService) PendingOperations(ctx context.Context) []domain.OfflineOperation {
	return s.queue.Pending(ctx)
}

func (s *NoteService) PendingCount(ctx context.Context) int {
	return s.queue.Len(ctx)
}

func (s *NoteService) DeadLetters(ctx context.Context) []domain.OfflineOperation {
	return s.queue.DeadLetters(ctx)
}

func (s *NoteService) SyncStatus(ctx context.Context) *domain.SyncStatus {
	state := s.network.CurrentState()
	return &domain.SyncStatus{
		Network:      state,
		Online:       state.Online(),
		Pending:      s.queue.Len(ctx),
		DeadLetters:  len(s.queue.DeadLetters(ctx)),
		LastSyncedAt: s.cache.GetLastSyncedAt(ctx),
	}
}

// HandleNetworkChange is subscribed to the reachability monitor. Coming back
// online starts a drain in the background.
func (s *NoteService) HandleNetworkChange(prev, cur domain.NetworkState) {
	s.notifier.NetworkChanged(cur)
	if !prev.Online() && cur.Online() {
		s.logger.Info().Msg("back online, draining offline queue")
		s.RequestSync()
	}
}

// kickSync drains right away when queued writes can actually reach the
// remote.
func (s *NoteService) kickSync() {
	if s.remote.ReadOnly() || !s.network.IsOnline() {
		return
	}
	s.RequestSync()
}

// RequestSync starts a drain in the background.
func (s *NoteService) RequestSync() {
	s.syncs.Add(1)
	go func() {
		defer s.syncs.Done()
		if _, err := s.SyncOfflineOperations(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("background sync failed")
		}
	}()
}

// Wait blocks until background drains started so far have finished.
func (s *NoteService) Wait() {
	s.syncs.Wait()
}

func isNotFound(err error) bool {
	var netErr *remote.NetworkError
	return errors.As(err, &netErr) && netErr.StatusCode == http.StatusNotFound
}
