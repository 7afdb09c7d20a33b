package app

import (
	"net/http"

	"notes-sync-client/internal/handler"
	"notes-sync-client/internal/middleware"
	"notes-sync-client/pkg/response"

	"github.com/gorilla/mux"
)

// Router builds the local API served to the UI.
func (a *App) Router() http.Handler {
	cfg := a.Config

	authHandler := handler.NewAuthHandler(a.Auth, a.Logger)
	userHandler := handler.NewUserHandler(a.Users, a.Preferences, a.Logger)
	noteHandler := handler.NewNoteHandler(a.Notes, a.Logger)
	syncHandler := handler.NewSyncHandler(a.Notes, a.Logger)
	networkHandler := handler.NewNetworkHandler(a.Monitor)
	wsHandler := handler.NewWebSocketHandler(a.WebSocket, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, a.Logger)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(a.Logger))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute)))
	}

	r.HandleFunc("/health", a.health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(a.Auth))

	protected.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/preferences", userHandler.GetPreferences).Methods("GET", "OPTIONS")
	protected.HandleFunc("/preferences", userHandler.UpdatePreferences).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes", noteHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/favorite", noteHandler.ToggleFavorite).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/public", noteHandler.TogglePublic).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/like", noteHandler.ToggleLike).Methods("POST", "OPTIONS")
	protected.HandleFunc("/feed", noteHandler.Feed).Methods("GET", "OPTIONS")

	protected.HandleFunc("/sync", syncHandler.Sync).Methods("POST", "OPTIONS")
	protected.HandleFunc("/sync/status", syncHandler.Status).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/operations", syncHandler.Operations).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/dead-letters", syncHandler.DeadLetters).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/dead-letters/{id}/retry", syncHandler.RetryDeadLetter).Methods("POST", "OPTIONS")

	protected.HandleFunc("/network", networkHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/network/refresh", networkHandler.Refresh).Methods("POST", "OPTIONS")

	protected.HandleFunc("/ws", wsHandler.HandleConnection).Methods("GET")

	return r
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	state := a.Monitor.CurrentState()
	response.Success(w, map[string]interface{}{
		"status":    "healthy",
		"service":   "notes-sync-client",
		"online":    state.Online(),
		"read_only": a.Remote.ReadOnly(),
	})
}
