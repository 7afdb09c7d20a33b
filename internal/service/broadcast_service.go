package service

import (
	"fmt"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/websocket"

	"github.com/rs/zerolog"
)

// BroadcastService pushes engine events to every connected UI client and
// answers the messages those clients send.
type BroadcastService struct {
	manager *websocket.Manager
	notes   *NoteService
	logger  zerolog.Logger
}

func NewBroadcastService(manager *websocket.Manager, notes *NoteService, logger zerolog.Logger) *BroadcastService {
	return &BroadcastService{
		manager: manager,
		notes:   notes,
		logger:  logger.With().Str("component", "broadcast").Logger(),
	}
}

func (s *BroadcastService) NoteCreated(note *domain.Note) {
	s.broadcast(websocket.TypeNoteCreated, websocket.NotePayload{Note: note})
}

func (s *BroadcastService) NoteUpdated(note *domain.Note) {
	s.broadcast(websocket.TypeNoteUpdated, websocket.NotePayload{Note: note})
}

func (s *BroadcastService) NoteDeleted(noteID string) {
	s.broadcast(websocket.TypeNoteDeleted, websocket.NoteDeletedPayload{NoteID: noteID})
}

func (s *BroadcastService) NetworkChanged(state domain.NetworkState) {
	s.broadcast(websocket.TypeNetworkState, websocket.NetworkStatePayload{
		NetworkState: state,
		Online:       state.Online(),
	})
}

func (s *BroadcastService) SyncCompleted(report *domain.SyncReport) {
	s.broadcast(websocket.TypeSyncCompleted, websocket.SyncCompletedPayload{Report: report})
}

func (s *BroadcastService) broadcast(msgType websocket.MessageType, payload interface{}) {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(msgType)).Msg("failed to build message")
		return
	}
	if err := s.manager.Broadcast(msg); err != nil {
		s.logger.Error().Err(err).Str("type", string(msgType)).Msg("failed to broadcast")
	}
}

// HandleWebSocketMessage runs on the manager loop, so a sync request is
// handed to the background and answered by the sync_completed broadcast.
func (s *BroadcastService) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		pong, err := websocket.NewMessage(websocket.TypePong, nil)
		if err != nil {
			return err
		}
		return s.manager.SendToClient(client.ID, pong)

	case websocket.TypeSyncRequest:
		s.notes.RequestSync()
		return nil

	default:
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
}
