package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/queue"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/storage"

	"github.com/rs/zerolog"
)

type fakeNetwork struct {
	mu     sync.Mutex
	online bool
}

func (n *fakeNetwork) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *fakeNetwork) CurrentState() domain.NetworkState {
	online := n.IsOnline()
	return domain.NetworkState{IsConnected: online, IsInternetReachable: online}
}

func (n *fakeNetwork) set(online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online = online
}

// fakeRemote records every call. With assignIDs set, creates get numeric
// ids the way a real backend would hand them out.
type fakeRemote struct {
	mu        sync.Mutex
	readOnly  bool
	notes     []domain.Note
	total     int
	listErr   error
	pageErr   error
	writeErr  error
	assignIDs bool
	nextID    int
	calls     []string
	listCalls int
}

var _ remote.NoteSource = (*fakeRemote)(nil)

func (r *fakeRemote) record(call string) {
	r.calls = append(r.calls, call)
}

func (r *fakeRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRemote) ReadOnly() bool { return r.readOnly }

func (r *fakeRemote) List(ctx context.Context) ([]domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]domain.Note(nil), r.notes...), nil
}

func (r *fakeRemote) Page(ctx context.Context, page, limit int) ([]domain.Note, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pageErr != nil {
		return nil, 0, r.pageErr
	}
	start := (page - 1) * limit
	if start >= len(r.notes) {
		return []domain.Note{}, r.total, nil
	}
	end := start + limit
	if end > len(r.notes) {
		end = len(r.notes)
	}
	return append([]domain.Note(nil), r.notes[start:end]...), r.total, nil
}

func (r *fakeRemote) Create(ctx context.Context, note domain.Note, key string) (*domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readOnly {
		return nil, remote.ErrReadOnly
	}
	r.record("create:" + note.ID)
	if r.writeErr != nil {
		return nil, r.writeErr
	}
	if r.assignIDs {
		r.nextID++
		note.ID = strconv.Itoa(100 + r.nextID)
	}
	return &note, nil
}

func (r *fakeRemote) Update(ctx context.Context, note domain.Note, key string) (*domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readOnly {
		return nil, remote.ErrReadOnly
	}
	r.record("update:" + note.ID)
	if r.writeErr != nil {
		return nil, r.writeErr
	}
	note.Title = note.Title + " [server]"
	return &note, nil
}

func (r *fakeRemote) Delete(ctx context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readOnly {
		return remote.ErrReadOnly
	}
	r.record("delete:" + id)
	return r.writeErr
}

func (r *fakeRemote) setWriteErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeErr = err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) NoteCreated(note *domain.Note)            { n.add("created:" + note.ID) }
func (n *recordingNotifier) NoteUpdated(note *domain.Note)            { n.add("updated:" + note.ID) }
func (n *recordingNotifier) NoteDeleted(id string)                    { n.add("deleted:" + id) }
func (n *recordingNotifier) NetworkChanged(state domain.NetworkState) { n.add("network") }
func (n *recordingNotifier) SyncCompleted(report *domain.SyncReport)  { n.add("synced") }

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fixture struct {
	svc     *NoteService
	cache   *cache.Cache
	queue   *queue.Queue
	remote  *fakeRemote
	network *fakeNetwork
	clock   *time.Time
}

func newFixture(t *testing.T, online bool, rem *fakeRemote) *fixture {
	t.Helper()
	if rem == nil {
		rem = &fakeRemote{readOnly: true}
	}
	c := cache.New(storage.NewMemoryStore(), zerolog.Nop())
	q := queue.New(c, queue.Config{MaxAttempts: 2, BackoffBase: time.Millisecond, BackoffMax: time.Millisecond}, zerolog.Nop())
	network := &fakeNetwork{online: online}
	svc := NewNoteService(c, q, rem, network, zerolog.Nop())

	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	t.Cleanup(svc.Wait)

	return &fixture{svc: svc, cache: c, queue: q, remote: rem, network: network, clock: &clock}
}

func seedNotes(t *testing.T, c *cache.Cache, n int) []domain.Note {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	notes := make([]domain.Note, 0, n)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		notes = append(notes, domain.Note{
			ID:        "seed-" + strconv.Itoa(i),
			Title:     "Seed " + strconv.Itoa(i),
			Category:  domain.CategoryPersonal,
			CreatedAt: at,
			UpdatedAt: at,
			LikedBy:   []string{},
		})
	}
	if err := c.CacheNotes(context.Background(), notes); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	return notes
}

func strPtr(s string) *string { return &s }
