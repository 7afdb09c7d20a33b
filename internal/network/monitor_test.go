package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	prev, cur domain.NetworkState
}

type recorder struct {
	mu  sync.Mutex
	got []transition
}

func (r *recorder) listen(prev, cur domain.NetworkState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, transition{prev, cur})
}

func (r *recorder) transitions() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.got...)
}

func boolPtr(b bool) *bool { return &b }

func online() ProbeResult {
	return ProbeResult{IsConnected: boolPtr(true), IsInternetReachable: boolPtr(true)}
}

func offline() ProbeResult {
	return ProbeResult{IsConnected: boolPtr(true), IsInternetReachable: boolPtr(false)}
}

func TestMonitor_StartsOffline(t *testing.T) {
	m := NewMonitor(NewStaticProbe(true, true), 0, zerolog.Nop())
	assert.True(t, m.IsOffline())
	assert.False(t, m.IsOnline())
}

func TestMonitor_NotifiesOncePerTransition(t *testing.T) {
	m := NewMonitor(NewStaticProbe(false, false), 0, zerolog.Nop())
	rec := &recorder{}
	m.Subscribe(rec.listen)

	m.Update(online())
	m.Update(online())
	m.Update(ProbeResult{IsConnected: boolPtr(true), IsInternetReachable: boolPtr(true)})
	m.Update(offline())
	m.Update(ProbeResult{IsConnected: boolPtr(false), IsInternetReachable: boolPtr(false)})
	m.Update(online())

	got := rec.transitions()
	require.Len(t, got, 3)
	assert.False(t, got[0].prev.Online())
	assert.True(t, got[0].cur.Online())
	assert.True(t, got[1].prev.Online())
	assert.False(t, got[1].cur.Online())
	assert.False(t, got[2].prev.Online())
	assert.True(t, got[2].cur.Online())
}

func TestMonitor_StoresNonTransitionChanges(t *testing.T) {
	m := NewMonitor(NewStaticProbe(false, false), 0, zerolog.Nop())
	rec := &recorder{}
	m.Subscribe(rec.listen)

	m.Update(ProbeResult{IsConnected: boolPtr(true), IsInternetReachable: boolPtr(false)})

	assert.Empty(t, rec.transitions())
	assert.True(t, m.CurrentState().IsConnected)
	assert.True(t, m.IsOffline())
}

func TestMonitor_MultipleSubscribersAndUnsubscribe(t *testing.T) {
	m := NewMonitor(NewStaticProbe(false, false), 0, zerolog.Nop())
	a, b := &recorder{}, &recorder{}
	unsubA := m.Subscribe(a.listen)
	m.Subscribe(b.listen)

	m.Update(online())
	unsubA()
	unsubA()
	m.Update(offline())

	assert.Len(t, a.transitions(), 1)
	assert.Len(t, b.transitions(), 2)
}

func TestMonitor_UnknownFieldsAreOffline(t *testing.T) {
	tests := []struct {
		name   string
		result ProbeResult
	}{
		{"both nil", ProbeResult{}},
		{"reachability nil", ProbeResult{IsConnected: boolPtr(true)}},
		{"connection nil", ProbeResult{IsInternetReachable: boolPtr(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(NewStaticProbe(true, true), 0, zerolog.Nop())
			m.Update(online())
			state := m.Update(tt.result)
			assert.False(t, state.Online())
			assert.True(t, m.IsOffline())
		})
	}
}

func TestMonitor_RefreshProbeErrorIsOffline(t *testing.T) {
	probe := NewStaticProbe(true, true)
	m := NewMonitor(probe, 0, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, m.Refresh(ctx).Online())

	probe.SetResult(online(), errors.New("platform error"))
	assert.False(t, m.Refresh(ctx).Online())
}

func TestMonitor_RunPollsUntilCanceled(t *testing.T) {
	probe := NewStaticProbe(false, false)
	m := NewMonitor(probe, 5*time.Millisecond, zerolog.Nop())

	changed := make(chan domain.NetworkState, 4)
	m.Subscribe(func(prev, cur domain.NetworkState) { changed <- cur })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	probe.Set(true, true)
	select {
	case cur := <-changed:
		assert.True(t, cur.Online())
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not pick up the change")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHTTPProbe(t *testing.T) {
	tests := []struct {
		name          string
		link          bool
		status        int
		wantConnected bool
		wantReachable bool
	}{
		{"no link", false, http.StatusOK, false, false},
		{"reachable", true, http.StatusOK, true, true},
		{"not found still reachable", true, http.StatusNotFound, true, true},
		{"server error", true, http.StatusServiceUnavailable, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewHTTPProbe(srv.URL, time.Second)
			p.link = func() bool { return tt.link }

			result, err := p.Probe(context.Background())
			require.NoError(t, err)
			require.NotNil(t, result.IsConnected)
			require.NotNil(t, result.IsInternetReachable)
			assert.Equal(t, tt.wantConnected, *result.IsConnected)
			assert.Equal(t, tt.wantReachable, *result.IsInternetReachable)
		})
	}
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewHTTPProbe(url, time.Second)
	p.link = func() bool { return true }

	result, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, *result.IsInternetReachable)
}
