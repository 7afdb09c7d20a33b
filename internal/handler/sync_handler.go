package handler

import (
	"context"
	"net/http"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/service"
	"notes-sync-client/pkg/response"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type SyncHandler struct {
	notes  *service.NoteService
	logger zerolog.Logger
}

func NewSyncHandler(notes *service.NoteService, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		notes:  notes,
		logger: logger,
	}
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.notes.SyncStatus(r.Context()))
}

// Sync drains the offline queue and answers with the drain report.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.notes.SyncOfflineOperations(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, report)
}

func (h *SyncHandler) Operations(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.notes.PendingOperations(r.Context()))
}

func (h *SyncHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.notes.DeadLetters(r.Context()))
}

func (h *SyncHandler) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	op, err := h.notes.RetryDeadLetter(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Accepted(w, op)
}

// NetworkMonitor is the part of the reachability monitor the API exposes.
type NetworkMonitor interface {
	CurrentState() domain.NetworkState
	Refresh(ctx context.Context) domain.NetworkState
}

type networkView struct {
	domain.NetworkState
	Online bool `json:"online"`
}

type NetworkHandler struct {
	monitor NetworkMonitor
}

func NewNetworkHandler(monitor NetworkMonitor) *NetworkHandler {
	return &NetworkHandler{monitor: monitor}
}

func (h *NetworkHandler) Get(w http.ResponseWriter, r *http.Request) {
	state := h.monitor.CurrentState()
	response.Success(w, networkView{NetworkState: state, Online: state.Online()})
}

// Refresh probes right away instead of waiting for the next poll.
func (h *NetworkHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	state := h.monitor.Refresh(r.Context())
	response.Success(w, networkView{NetworkState: state, Online: state.Online()})
}
