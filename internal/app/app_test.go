package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notes-sync-client/internal/config"
	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/network"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details []string        `json:"details"`
}

type harness struct {
	t      *testing.T
	app    *App
	probe  *network.StaticProbe
	server *httptest.Server
	token  string
}

func testConfig(remoteURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Env: "test"},
		Store:  storage.Config{Driver: storage.DriverMemory},
		Remote: config.RemoteConfig{
			BaseURL:      remoteURL,
			Timeout:      time.Second,
			ReadOnly:     true,
			AssumedTotal: 100,
		},
		Network: config.NetworkConfig{ProbeInterval: time.Hour},
		Sync:    config.SyncConfig{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMax: time.Millisecond},
		JWT: config.JWTConfig{
			Secret:                 "app-test-secret",
			Expiration:             time.Hour,
			RefreshTokenExpiration: 24 * time.Hour,
		},
		WebSocket: config.WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			MaxMessageSize:  1 << 20,
			WriteWait:       time.Second,
			PongWait:        time.Minute,
			PingPeriod:      30 * time.Second,
			MaxConnPerUser:  5,
		},
		CORS: config.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST,PUT,DELETE,OPTIONS", AllowedHeaders: "Content-Type,Authorization"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	posts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]remote.Post{
			{UserID: 1, ID: 1, Title: "remote one", Body: "from the server"},
			{UserID: 1, ID: 2, Title: "remote two", Body: "also from the server"},
		})
	}))
	t.Cleanup(posts.Close)

	probe := network.NewStaticProbe(false, false)
	a, err := New(context.Background(), testConfig(posts.URL), zerolog.Nop(), WithProbe(probe))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})

	return &harness{t: t, app: a, probe: probe, server: srv}
}

func (h *harness) do(method, path string, body interface{}) (int, envelope) {
	h.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (h *harness) login() {
	h.t.Helper()

	status, _ := h.do("POST", "/api/v1/auth/register", domain.RegisterRequest{
		Username: "writer",
		Email:    "writer@example.com",
		Password: "Password123!",
	})
	require.Equal(h.t, http.StatusCreated, status)

	status, env := h.do("POST", "/api/v1/auth/login", domain.LoginRequest{
		Email:    "writer@example.com",
		Password: "Password123!",
	})
	require.Equal(h.t, http.StatusOK, status)

	var login domain.LoginResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &login))
	h.token = login.AccessToken
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	status, env := h.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, status)

	var body map[string]interface{}
	decodeData(t, env, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["read_only"])
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do("GET", "/api/v1/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	h.login()

	status, _ = h.do("POST", "/api/v1/auth/register", domain.RegisterRequest{
		Username: "other",
		Email:    "writer@example.com",
		Password: "Password123!",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, env := h.do("POST", "/api/v1/auth/register", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, env.Details)

	status, env = h.do("GET", "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, status)
	var me domain.User
	decodeData(t, env, &me)
	assert.Equal(t, "writer", me.Username)

	status, _ = h.do("POST", "/api/v1/auth/login", domain.LoginRequest{Email: "writer@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestNotesOfflineLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login()

	status, env := h.do("POST", "/api/v1/notes", map[string]string{"content": "no title"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, env.Details)

	status, env = h.do("POST", "/api/v1/notes", domain.CreateNoteRequest{Title: "Groceries", Content: "milk", Category: domain.CategoryTodo})
	require.Equal(t, http.StatusCreated, status)
	var created domain.Note
	decodeData(t, env, &created)
	require.NotEmpty(t, created.ID)

	status, _ = h.do("GET", "/api/v1/notes/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do("PUT", "/api/v1/notes/"+created.ID, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = h.do("PUT", "/api/v1/notes/"+created.ID, map[string]string{"title": "Groceries!"})
	require.Equal(t, http.StatusOK, status)
	var updated domain.Note
	decodeData(t, env, &updated)
	assert.Equal(t, "Groceries!", updated.Title)

	status, env = h.do("POST", "/api/v1/notes/"+created.ID+"/like", nil)
	require.Equal(t, http.StatusOK, status)
	var liked struct {
		Likes   int      `json:"likes"`
		LikedBy []string `json:"liked_by"`
	}
	decodeData(t, env, &liked)
	assert.Equal(t, 1, liked.Likes)

	status, env = h.do("GET", "/api/v1/notes?q=GROCER", nil)
	require.Equal(t, http.StatusOK, status)
	var found []domain.Note
	decodeData(t, env, &found)
	assert.Len(t, found, 1)

	status, _ = h.do("GET", "/api/v1/notes?category=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do("GET", "/api/v1/notes?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = h.do("GET", "/api/v1/sync/status", nil)
	require.Equal(t, http.StatusOK, status)
	var syncStatus domain.SyncStatus
	decodeData(t, env, &syncStatus)
	assert.False(t, syncStatus.Online)
	assert.Equal(t, 3, syncStatus.Pending)

	status, env = h.do("POST", "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, status)
	var report domain.SyncReport
	decodeData(t, env, &report)
	assert.True(t, report.Skipped)

	status, _ = h.do("DELETE", "/api/v1/notes/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = h.do("GET", "/api/v1/notes/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReconnectDrainsQueue(t *testing.T) {
	h := newHarness(t)
	h.login()

	status, _ := h.do("POST", "/api/v1/notes", domain.CreateNoteRequest{Title: "written offline"})
	require.Equal(t, http.StatusCreated, status)

	h.probe.Set(true, true)
	status, env := h.do("POST", "/api/v1/network/refresh", nil)
	require.Equal(t, http.StatusOK, status)
	var state struct {
		Online bool `json:"online"`
	}
	decodeData(t, env, &state)
	assert.True(t, state.Online)

	h.app.Notes.Wait()

	status, env = h.do("GET", "/api/v1/sync/operations", nil)
	require.Equal(t, http.StatusOK, status)
	var ops []domain.OfflineOperation
	decodeData(t, env, &ops)
	assert.Empty(t, ops, "a read-only remote visits and drops every operation")

	status, _ = h.do("POST", "/api/v1/sync/dead-letters/missing/retry", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOnlineEmptyCacheReadsRemote(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.probe.Set(true, true)
	h.app.Monitor.Refresh(context.Background())
	h.app.Notes.Wait()

	status, env := h.do("GET", "/api/v1/notes", nil)
	require.Equal(t, http.StatusOK, status)
	var notes []domain.Note
	decodeData(t, env, &notes)
	require.Len(t, notes, 2)
	assert.Equal(t, "remote one", notes[0].Title)
	assert.True(t, notes[0].IsPublic)

	status, env = h.do("GET", "/api/v1/feed", nil)
	require.Equal(t, http.StatusOK, status)
	var feed []domain.Note
	decodeData(t, env, &feed)
	assert.Len(t, feed, 2)
}

func TestLogoutClearsSessionButKeepsAccount(t *testing.T) {
	h := newHarness(t)
	h.login()

	status, _ := h.do("POST", "/api/v1/notes", domain.CreateNoteRequest{Title: "private"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = h.do("POST", "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)

	assert.Empty(t, h.app.Cache.GetAuthToken(context.Background()))
	assert.Empty(t, h.app.Cache.GetCachedNotes(context.Background()))
	assert.Zero(t, h.app.Queue.Len(context.Background()))

	h.token = ""
	status, _ = h.do("POST", "/api/v1/auth/login", domain.LoginRequest{Email: "writer@example.com", Password: "Password123!"})
	assert.Equal(t, http.StatusOK, status)
}

func TestPreferences(t *testing.T) {
	h := newHarness(t)
	h.login()

	status, env := h.do("GET", "/api/v1/preferences", nil)
	require.Equal(t, http.StatusOK, status)
	var prefs domain.Preferences
	decodeData(t, env, &prefs)
	assert.Equal(t, domain.DefaultPreferences(), prefs)

	status, env = h.do("PUT", "/api/v1/preferences", map[string]string{"theme": "dark"})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &prefs)
	assert.Equal(t, "dark", prefs.Theme)
	assert.Equal(t, domain.CategoryPersonal, prefs.DefaultCategory)

	status, _ = h.do("PUT", "/api/v1/preferences", map[string]string{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Store = storage.Config{Driver: storage.DriverFile, Path: t.TempDir()}
	return cfg
}

func TestNew_OnlineStartIsNotAReconnect(t *testing.T) {
	cfg := fileConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, zerolog.Nop(), WithProbe(network.NewStaticProbe(true, true)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.True(t, a.Monitor.IsOnline())

	_, err = a.Notes.CreateNote(ctx, "local", &domain.CreateNoteRequest{Title: "added from the cli"})
	require.NoError(t, err)
	a.Notes.Wait()

	ops := a.Notes.PendingOperations(ctx)
	require.Len(t, ops, 1)
	assert.Equal(t, domain.StatusPending, ops[0].Status)
}

func TestStart_DrainsQueueLeftByEarlierRun(t *testing.T) {
	cfg := fileConfig(t)
	ctx := context.Background()

	first, err := New(ctx, cfg, zerolog.Nop(), WithProbe(network.NewStaticProbe(false, false)))
	require.NoError(t, err)
	_, err = first.Notes.CreateNote(ctx, "local", &domain.CreateNoteRequest{Title: "written last session"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, zerolog.Nop(), WithProbe(network.NewStaticProbe(true, true)))
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })
	require.Equal(t, 1, second.Notes.PendingCount(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	second.Start(runCtx)
	second.Notes.Wait()

	assert.Zero(t, second.Notes.PendingCount(ctx))
}
