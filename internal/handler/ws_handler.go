package handler

import (
	"net/http"

	"notes-sync-client/internal/middleware"
	"notes-sync-client/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	upgrader ws.Upgrader
	logger   zerolog.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, readBufferSize, writeBufferSize int, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleConnection upgrades an authenticated request and attaches the client
// to the push channel.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to upgrade connection")
		return
	}

	client := websocket.NewClient(uuid.New().String(), userID, conn, h.manager)

	select {
	case h.manager.Register <- client:
	case <-h.manager.Done():
		conn.Close()
		return
	}

	h.logger.Debug().Str("client_id", client.ID).Str("user_id", userID).Msg("client connected")

	client.Serve()
}
