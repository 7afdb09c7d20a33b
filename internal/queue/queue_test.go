package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/storage"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue(t *testing.T, cfg Config) (*Queue, *cache.Cache, *fakeClock) {
	t.Helper()
	c := cache.New(storage.NewMemoryStore(), zerolog.Nop())
	q := New(c, cfg, zerolog.Nop())
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	q.now = clock.Now
	return q, c, clock
}

func enqueueAll(t *testing.T, q *Queue, noteIDs ...string) []domain.OfflineOperation {
	t.Helper()
	ops := make([]domain.OfflineOperation, 0, len(noteIDs))
	for _, id := range noteIDs {
		op, err := q.Enqueue(context.Background(), domain.OperationUpdate, id, map[string]string{"title": id})
		require.NoError(t, err)
		ops = append(ops, op)
	}
	return ops
}

func TestEnqueue(t *testing.T) {
	q, _, _ := newTestQueue(t, DefaultConfig())
	ctx := context.Background()

	op, err := q.Enqueue(ctx, domain.OperationCreate, "note-1", domain.Note{ID: "note-1", Title: "hi"})
	require.NoError(t, err)

	assert.NotEmpty(t, op.ID)
	assert.Equal(t, domain.OperationCreate, op.Kind)
	assert.Equal(t, domain.StatusPending, op.Status)
	assert.Equal(t, 5, op.MaxAttempts)

	var payload domain.Note
	require.NoError(t, op.DecodePayload(&payload))
	assert.Equal(t, "hi", payload.Title)

	deleteOp, err := q.Enqueue(ctx, domain.OperationDelete, "note-1", nil)
	require.NoError(t, err)
	assert.Empty(t, deleteOp.Payload)

	assert.Equal(t, 2, q.Len(ctx))
}

func TestDrain_VisitsInOrderAndEmptiesOnSkip(t *testing.T) {
	q, _, _ := newTestQueue(t, DefaultConfig())
	ctx := context.Background()
	enqueueAll(t, q, "a", "b", "c")

	var visited []string
	res, err := q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		visited = append(visited, op.NoteID)
		return ReplayResult{}, ErrSkipReplay
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, visited)
	assert.Equal(t, 3, res.Visited)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 0, q.Len(ctx))
}

func TestDrain_ConfirmedOperationsAreRemoved(t *testing.T) {
	q, _, _ := newTestQueue(t, DefaultConfig())
	ctx := context.Background()
	enqueueAll(t, q, "a", "b")

	res, err := q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		return ReplayResult{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Confirmed)
	assert.Empty(t, q.Pending(ctx))
}

func TestDrain_StopsOnFailureAndSchedulesRetry(t *testing.T) {
	q, _, clock := newTestQueue(t, DefaultConfig())
	ctx := context.Background()
	enqueueAll(t, q, "a", "b", "c")

	var visited []string
	res, err := q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		visited = append(visited, op.NoteID)
		if op.NoteID == "b" {
			return ReplayResult{}, errors.New("503 from remote")
		}
		return ReplayResult{}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, visited)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Remaining)

	pending := q.Pending(ctx)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].NoteID)
	assert.Equal(t, domain.StatusFailed, pending[0].Status)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "503 from remote", pending[0].LastError)
	require.NotNil(t, pending[0].NextRetryAt)
	assert.Equal(t, clock.Now().Add(4*time.Second), *pending[0].NextRetryAt)
	assert.Equal(t, "c", pending[1].NoteID)
	assert.Equal(t, domain.StatusPending, pending[1].Status)
}

func TestDrain_DefersUntilRetryTime(t *testing.T) {
	q, _, clock := newTestQueue(t, DefaultConfig())
	ctx := context.Background()
	enqueueAll(t, q, "a")

	fail := func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		return ReplayResult{}, errors.New("down")
	}
	_, err := q.Drain(ctx, fail)
	require.NoError(t, err)

	calls := 0
	res, err := q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		calls++
		return ReplayResult{}, nil
	})
	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, q.Len(ctx))

	clock.Advance(5 * time.Second)
	res, err = q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		calls++
		return ReplayResult{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, 0, q.Len(ctx))
}

func TestDrain_DeadLettersAfterMaxAttempts(t *testing.T) {
	q, _, clock := newTestQueue(t, Config{MaxAttempts: 2, BackoffBase: time.Second, BackoffMax: time.Minute})
	ctx := context.Background()
	enqueueAll(t, q, "a", "b")

	replay := func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		if op.NoteID == "a" {
			return ReplayResult{}, errors.New("rejected")
		}
		return ReplayResult{}, nil
	}

	res, err := q.Drain(ctx, replay)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	clock.Advance(time.Hour)
	res, err = q.Drain(ctx, replay)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLettered)
	assert.Equal(t, 1, res.Confirmed, "drain continues past a dead-lettered operation")
	assert.Equal(t, 0, q.Len(ctx))

	dead := q.DeadLetters(ctx)
	require.Len(t, dead, 1)
	assert.Equal(t, "a", dead[0].NoteID)
	assert.Equal(t, domain.StatusDead, dead[0].Status)
	assert.Equal(t, 2, dead[0].Attempts)
	assert.Nil(t, dead[0].NextRetryAt)
}

func TestDrain_AdoptedIDRewritesLaterOperations(t *testing.T) {
	q, _, _ := newTestQueue(t, DefaultConfig())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, domain.OperationCreate, "local-1", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, domain.OperationUpdate, "local-1", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, domain.OperationUpdate, "other", nil)
	require.NoError(t, err)

	var seen []string
	res, err := q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		seen = append(seen, op.NoteID)
		if op.Kind == domain.OperationCreate {
			return ReplayResult{AdoptedID: "101"}, nil
		}
		return ReplayResult{}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"local-1", "101", "other"}, seen)
	assert.Equal(t, map[string]string{"local-1": "101"}, res.Adopted)
}

func TestDrain_CanceledContext(t *testing.T) {
	q, _, _ := newTestQueue(t, DefaultConfig())
	enqueueAll(t, q, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
		t.Fatal("replay must not run")
		return ReplayResult{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	q := New(nil, Config{MaxAttempts: 5, BackoffBase: 2 * time.Second, BackoffMax: 10 * time.Minute}, zerolog.Nop())

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{5, 64 * time.Second},
		{8, 512 * time.Second},
		{9, 10 * time.Minute},
		{64, 10 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, q.Backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestRequeue(t *testing.T) {
	q, c, _ := newTestQueue(t, DefaultConfig())
	ctx := context.Background()

	dead := domain.OfflineOperation{ID: "dead-1", Kind: domain.OperationUpdate, NoteID: "n", Status: domain.StatusDead, Attempts: 5, MaxAttempts: 5, LastError: "gone"}
	require.NoError(t, c.AddDeadLetter(ctx, dead))
	enqueueAll(t, q, "first")

	op, err := q.Requeue(ctx, "dead-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, op.Status)
	assert.Equal(t, 0, op.Attempts)
	assert.Empty(t, op.LastError)

	pending := q.Pending(ctx)
	require.Len(t, pending, 2)
	assert.Equal(t, "dead-1", pending[1].ID, "requeued operations go to the tail")
	assert.Empty(t, q.DeadLetters(ctx))

	_, err = q.Requeue(ctx, "dead-1")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestDrain_PreservesIssueOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("drain visits operations in the order they were enqueued", prop.ForAll(
		func(noteIDs []string) bool {
			q, _, _ := newTestQueue(t, DefaultConfig())
			ctx := context.Background()
			for _, id := range noteIDs {
				if _, err := q.Enqueue(ctx, domain.OperationUpdate, id, nil); err != nil {
					return false
				}
			}

			var visited []string
			_, err := q.Drain(ctx, func(ctx context.Context, op domain.OfflineOperation) (ReplayResult, error) {
				visited = append(visited, op.NoteID)
				return ReplayResult{}, ErrSkipReplay
			})
			if err != nil || len(visited) != len(noteIDs) {
				return false
			}
			for i := range noteIDs {
				if visited[i] != noteIDs[i] {
					return false
				}
			}
			return q.Len(ctx) == 0
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
