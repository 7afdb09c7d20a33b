package service

import (
	"context"
	"testing"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/websocket"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncWorker_Tick(t *testing.T) {
	tests := []struct {
		name      string
		online    bool
		autoSync  bool
		wantQueue int
	}{
		{"online with auto sync drains", true, true, 0},
		{"offline waits", false, true, 1},
		{"auto sync disabled waits", true, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false, nil)
			ctx := context.Background()

			_, err := f.svc.CreateNote(ctx, "u", &domain.CreateNoteRequest{Title: "t"})
			require.NoError(t, err)

			prefs := domain.DefaultPreferences()
			prefs.AutoSync = tt.autoSync
			require.NoError(t, f.cache.StorePreferences(ctx, prefs))
			f.network.set(tt.online)

			w := NewSyncWorker(f.svc, f.network, f.cache, time.Minute, zerolog.Nop())
			w.tick(ctx)

			assert.Equal(t, tt.wantQueue, f.queue.Len(ctx))
		})
	}
}

func TestSyncWorker_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, true, nil)
	w := NewSyncWorker(f.svc, f.network, f.cache, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBroadcastService_HandleWebSocketMessage(t *testing.T) {
	f := newFixture(t, false, nil)
	manager := websocket.NewManager(websocket.Options{MaxConnPerUser: 1}, zerolog.Nop())
	go manager.Run()
	t.Cleanup(manager.Shutdown)

	svc := NewBroadcastService(manager, f.svc, zerolog.Nop())
	f.svc.SetNotifier(svc)
	ctx := context.Background()

	_, err := f.svc.CreateNote(ctx, "u", &domain.CreateNoteRequest{Title: "t"})
	require.NoError(t, err)

	client := &websocket.Client{ID: "c1"}
	unknown, err := websocket.NewMessage(websocket.TypeNoteCreated, nil)
	require.NoError(t, err)
	assert.Error(t, svc.HandleWebSocketMessage(client, unknown))

	f.network.set(true)
	req, err := websocket.NewMessage(websocket.TypeSyncRequest, nil)
	require.NoError(t, err)
	require.NoError(t, svc.HandleWebSocketMessage(client, req))
	f.svc.Wait()

	assert.Zero(t, f.queue.Len(ctx))
}
