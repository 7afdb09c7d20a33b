// Package queue is the durable FIFO of mutation intents recorded while the
// remote could not be written to, and the drain loop that replays them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrSkipReplay tells Drain the operation was visited but cannot be
	// replayed. It is dropped from the queue with status attempted.
	ErrSkipReplay = errors.New("replay skipped")

	ErrOperationNotFound = errors.New("operation not found")
)

// Store is the persistence the queue needs. *cache.Cache implements it.
type Store interface {
	GetOfflineOperations(ctx context.Context) []domain.OfflineOperation
	ModifyOfflineOperations(ctx context.Context, fn func([]domain.OfflineOperation) ([]domain.OfflineOperation, error)) error
	GetDeadLetters(ctx context.Context) []domain.OfflineOperation
	AddDeadLetter(ctx context.Context, op domain.OfflineOperation) error
	RemoveDeadLetter(ctx context.Context, id string) (domain.OfflineOperation, bool, error)
}

// ReplayResult is what a successful replay reports back. AdoptedID is set
// when the remote assigned a different id to a created note.
type ReplayResult struct {
	AdoptedID string
}

type ReplayFunc func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error)

type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BackoffBase: 2 * time.Second,
		BackoffMax:  10 * time.Minute,
	}
}

type DrainResult struct {
	Visited      int
	Confirmed    int
	Attempted    int
	Failed       int
	DeadLettered int
	Remaining    int
	// Deferred is set when the head of the queue is still waiting for its
	// retry time.
	Deferred bool
	// Adopted maps client note ids to the ids the remote assigned.
	Adopted map[string]string
}

type Queue struct {
	store  Store
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	drainMu sync.Mutex
}

func New(store Store, cfg Config, logger zerolog.Logger) *Queue {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaults.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaults.BackoffMax
	}
	return &Queue{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "queue").Logger(),
		now:    time.Now,
	}
}

// Enqueue appends a pending operation. payload is JSON encoded; nil leaves
// the payload empty.
func (q *Queue) Enqueue(ctx context.Context, kind domain.OperationKind, noteID string, payload interface{}) (domain.OfflineOperation, error) {
	op := domain.OfflineOperation{
		ID:          uuid.New().String(),
		Kind:        kind,
		NoteID:      noteID,
		Timestamp:   q.now().UTC(),
		Status:      domain.StatusPending,
		MaxAttempts: q.cfg.MaxAttempts,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return domain.OfflineOperation{}, fmt.Errorf("failed to encode payload: %w", err)
		}
		op.Payload = data
	}

	err := q.store.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		return append(ops, op), nil
	})
	if err != nil {
		return domain.OfflineOperation{}, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	q.logger.Debug().
		Str("op_id", op.ID).
		Str("kind", string(kind)).
		Str("note_id", noteID).
		Msg("operation queued")
	return op, nil
}

func (q *Queue) Pending(ctx context.Context) []domain.OfflineOperation {
	return q.store.GetOfflineOperations(ctx)
}

func (q *Queue) DeadLetters(ctx context.Context) []domain.OfflineOperation {
	return q.store.GetDeadLetters(ctx)
}

func (q *Queue) Len(ctx context.Context) int {
	return len(q.store.GetOfflineOperations(ctx))
}

// Backoff returns min(base * 2^attempts, max).
func (q *Queue) Backoff(attempts int) time.Duration {
	delay := q.cfg.BackoffBase
	for i := 0; i < attempts; i++ {
		if delay >= q.cfg.BackoffMax/2 {
			return q.cfg.BackoffMax
		}
		delay *= 2
	}
	if delay > q.cfg.BackoffMax {
		return q.cfg.BackoffMax
	}
	return delay
}

// Drain replays the operations present when it starts, oldest first. An
// operation leaves the queue only after it was processed. A failed replay
// stops the drain so later operations never overtake it; an operation that
// runs out of attempts moves to the dead-letter list and the drain goes on.
// Only one drain runs at a time.
func (q *Queue) Drain(ctx context.Context, replay ReplayFunc) (DrainResult, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	result := DrainResult{Adopted: make(map[string]string)}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	budget := len(q.store.GetOfflineOperations(ctx))

	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			result.Remaining = q.Len(context.WithoutCancel(ctx))
			return result, err
		}

		ops := q.store.GetOfflineOperations(ctx)
		if len(ops) == 0 {
			break
		}
		head := ops[0]

		if head.Status == domain.StatusFailed && head.NextRetryAt != nil && q.now().Before(*head.NextRetryAt) {
			result.Deferred = true
			break
		}

		result.Visited++
		res, err := replay(ctx, head)

		switch {
		case err == nil:
			if err := q.confirm(ctx, head, res.AdoptedID); err != nil {
				return result, err
			}
			result.Confirmed++
			if res.AdoptedID != "" && res.AdoptedID != head.NoteID {
				result.Adopted[head.NoteID] = res.AdoptedID
			}

		case errors.Is(err, ErrSkipReplay):
			if err := q.remove(ctx, head.ID); err != nil {
				return result, err
			}
			result.Attempted++
			q.logger.Debug().
				Str("op_id", head.ID).
				Str("kind", string(head.Kind)).
				Msg("operation visited without replay")

		default:
			dead, ferr := q.fail(ctx, head, err)
			if ferr != nil {
				return result, ferr
			}
			if dead {
				result.DeadLettered++
				continue
			}
			result.Failed++
			result.Remaining = q.Len(ctx)
			return result, nil
		}
	}

	result.Remaining = q.Len(ctx)
	return result, nil
}

// confirm removes op and points later operations on the same note at the
// adopted id.
func (q *Queue) confirm(ctx context.Context, op domain.OfflineOperation, adoptedID string) error {
	err := q.store.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		out := make([]domain.OfflineOperation, 0, len(ops))
		for _, o := range ops {
			if o.ID == op.ID {
				continue
			}
			if adoptedID != "" && o.NoteID == op.NoteID {
				o.NoteID = adoptedID
			}
			out = append(out, o)
		}
		return out, nil
	})
	if err != nil {
		return fmt.Errorf("failed to confirm operation: %w", err)
	}

	q.logger.Info().
		Str("op_id", op.ID).
		Str("kind", string(op.Kind)).
		Str("note_id", op.NoteID).
		Msg("operation confirmed")
	return nil
}

func (q *Queue) remove(ctx context.Context, id string) error {
	err := q.store.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		out := make([]domain.OfflineOperation, 0, len(ops))
		for _, o := range ops {
			if o.ID != id {
				out = append(out, o)
			}
		}
		return out, nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove operation: %w", err)
	}
	return nil
}

// fail records a failed replay and reports whether op was dead-lettered.
func (q *Queue) fail(ctx context.Context, op domain.OfflineOperation, cause error) (bool, error) {
	maxAttempts := op.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.cfg.MaxAttempts
	}

	op.Attempts++
	op.LastError = cause.Error()

	if op.Attempts >= maxAttempts {
		op.Status = domain.StatusDead
		op.NextRetryAt = nil
		if err := q.store.AddDeadLetter(ctx, op); err != nil {
			return false, fmt.Errorf("failed to dead-letter operation: %w", err)
		}
		if err := q.remove(ctx, op.ID); err != nil {
			return false, err
		}
		q.logger.Warn().
			Err(cause).
			Str("op_id", op.ID).
			Str("kind", string(op.Kind)).
			Int("attempts", op.Attempts).
			Msg("operation moved to dead letters")
		return true, nil
	}

	next := q.now().Add(q.Backoff(op.Attempts)).UTC()
	op.Status = domain.StatusFailed
	op.NextRetryAt = &next

	err := q.store.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		for i := range ops {
			if ops[i].ID == op.ID {
				ops[i] = op
				break
			}
		}
		return ops, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record failed attempt: %w", err)
	}

	q.logger.Warn().
		Err(cause).
		Str("op_id", op.ID).
		Str("kind", string(op.Kind)).
		Int("attempts", op.Attempts).
		Time("next_retry_at", next).
		Msg("operation replay failed")
	return false, nil
}

// Requeue moves a dead letter back to the tail of the queue with a fresh
// attempt budget.
func (q *Queue) Requeue(ctx context.Context, id string) (domain.OfflineOperation, error) {
	op, found, err := q.store.RemoveDeadLetter(ctx, id)
	if err != nil {
		return domain.OfflineOperation{}, fmt.Errorf("failed to take dead letter: %w", err)
	}
	if !found {
		return domain.OfflineOperation{}, ErrOperationNotFound
	}

	op.Status = domain.StatusPending
	op.Attempts = 0
	op.NextRetryAt = nil
	op.LastError = ""

	err = q.store.ModifyOfflineOperations(ctx, func(ops []domain.OfflineOperation) ([]domain.OfflineOperation, error) {
		return append(ops, op), nil
	})
	if err != nil {
		dead := op
		dead.Status = domain.StatusDead
		if rerr := q.store.AddDeadLetter(ctx, dead); rerr != nil {
			q.logger.Error().Err(rerr).Str("op_id", op.ID).Msg("failed to restore dead letter")
		}
		return domain.OfflineOperation{}, fmt.Errorf("failed to requeue operation: %w", err)
	}

	q.logger.Info().Str("op_id", op.ID).Msg("dead letter requeued")
	return op, nil
}
