// Package network tracks whether the device is online and tells subscribers
// about every online/offline transition.
package network

import (
	"context"
	"sync"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/rs/zerolog"
)

// Listener receives the state before and after a transition.
type Listener func(prev, cur domain.NetworkState)

type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   zerolog.Logger

	// updateMu orders updates so listeners see transitions in sequence.
	updateMu sync.Mutex

	mu        sync.RWMutex
	state     domain.NetworkState
	listeners map[int]Listener
	nextID    int
}

// NewMonitor starts offline until the first probe answers.
func NewMonitor(probe Probe, interval time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{
		probe:     probe,
		interval:  interval,
		logger:    logger.With().Str("component", "network").Logger(),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function that removes it. The returned
// function is safe to call more than once.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *Monitor) CurrentState() domain.NetworkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) IsOnline() bool {
	return m.CurrentState().Online()
}

func (m *Monitor) IsOffline() bool {
	return !m.IsOnline()
}

// Refresh probes now and applies the result. Probe errors count as offline.
func (m *Monitor) Refresh(ctx context.Context) domain.NetworkState {
	result, err := m.probe.Probe(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("network probe failed")
		result = ProbeResult{}
	}
	return m.Update(result)
}

// Update applies a probe result and notifies listeners when the online flag
// flips. Changes that keep the online flag are stored silently.
func (m *Monitor) Update(result ProbeResult) domain.NetworkState {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	cur := normalize(result)

	m.mu.Lock()
	prev := m.state
	m.state = cur
	var listeners []Listener
	if prev.Online() != cur.Online() {
		listeners = make([]Listener, 0, len(m.listeners))
		for id := 0; id < m.nextID; id++ {
			if l, ok := m.listeners[id]; ok {
				listeners = append(listeners, l)
			}
		}
	}
	m.mu.Unlock()

	if listeners != nil {
		m.logger.Info().
			Bool("online", cur.Online()).
			Bool("connected", cur.IsConnected).
			Bool("reachable", cur.IsInternetReachable).
			Msg("network state changed")
		for _, l := range listeners {
			l(prev, cur)
		}
	}
	return cur
}

// Run polls the probe until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Refresh(ctx)

	if m.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

func normalize(result ProbeResult) domain.NetworkState {
	state := domain.NetworkState{}
	if result.IsConnected != nil {
		state.IsConnected = *result.IsConnected
	}
	if result.IsInternetReachable != nil {
		state.IsInternetReachable = *result.IsInternetReachable
	}
	return state
}
