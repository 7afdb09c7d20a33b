package handler

import (
	"context"
	"net/http"
	"strconv"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/middleware"
	"notes-sync-client/internal/service"
	"notes-sync-client/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const defaultPageSize = 20

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewNoteHandler(service *service.NoteService, logger zerolog.Logger) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	note, err := h.service.CreateNote(r.Context(), middleware.GetUserID(r), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Created(w, note)
}

// List serves every read shape of the collection: search with q, filter by
// category or favorite, or a page when page is given. Without parameters it
// returns the whole cache.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if query.Has("page") || query.Has("page_size") {
		page, err := intParam(query.Get("page"), 1)
		if err != nil {
			response.BadRequest(w, "page must be a number")
			return
		}
		pageSize, err := intParam(query.Get("page_size"), defaultPageSize)
		if err != nil {
			response.BadRequest(w, "page_size must be a number")
			return
		}

		result, err := h.service.GetNotesPaginated(ctx, page, pageSize)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		response.Success(w, result)
		return
	}

	var (
		notes []domain.Note
		err   error
	)
	switch {
	case query.Has("q"):
		notes, err = h.service.SearchNotes(ctx, query.Get("q"))
	case query.Get("category") != "":
		category := domain.Category(query.Get("category"))
		if !category.Valid() {
			response.BadRequest(w, "unknown category")
			return
		}
		notes, err = h.service.GetNotesByCategory(ctx, category)
	case query.Get("favorite") == "true":
		notes, err = h.service.GetFavoriteNotes(ctx)
	default:
		notes, err = h.service.GetNotes(ctx)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.GetNoteByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNoteRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	note, err := h.service.UpdateNote(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.service.DeleteNote(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, map[string]string{"id": id})
}

func (h *NoteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.ToggleFavorite)
}

func (h *NoteHandler) TogglePublic(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.TogglePublic)
}

func (h *NoteHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	h.toggle(w, r, func(ctx context.Context, id string) (*domain.Note, error) {
		return h.service.ToggleLike(ctx, id, userID)
	})
}

func (h *NoteHandler) Feed(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.GetPublicFeed(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*domain.Note, error)) {
	note, err := fn(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, note)
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
