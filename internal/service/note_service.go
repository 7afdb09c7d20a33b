package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"notes-sync-client/internal/cache"
	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/queue"
	"notes-sync-client/internal/remote"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NetworkStatus is the part of the reachability monitor the engine reads.
type NetworkStatus interface {
	IsOnline() bool
	CurrentState() domain.NetworkState
}

// NoteService is the synchronization engine. Reads prefer the cache, writes
// land in the cache first and are recorded in the offline queue whenever the
// remote cannot take them right away.
type NoteService struct {
	cache    *cache.Cache
	queue    *queue.Queue
	remote   remote.NoteSource
	network  NetworkStatus
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	syncs sync.WaitGroup
}

func NewNoteService(
	c *cache.Cache,
	q *queue.Queue,
	source remote.NoteSource,
	network NetworkStatus,
	logger zerolog.Logger,
) *NoteService {
	return &NoteService{
		cache:    c,
		queue:    q,
		remote:   source,
		network:  network,
		notifier: nopNotifier{},
		logger:   logger.With().Str("component", "notes").Logger(),
		now:      time.Now,
	}
}

func (s *NoteService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// GetNotes returns the cache once it has been populated, even when every
// note was deleted since. A cache that was never populated is filled from
// the remote when online; remote failures read as empty.
func (s *NoteService) GetNotes(ctx context.Context) ([]domain.Note, error) {
	cached, populated := s.cache.LookupCachedNotes(ctx)
	if populated || !s.network.IsOnline() {
		return cached, nil
	}

	fetched, err := s.remote.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("remote fetch failed, serving empty cache")
		return []domain.Note{}, nil
	}

	// A local write that landed while the fetch was in flight wins.
	result, err := s.cache.PopulateNotes(ctx, fetched)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to populate cache")
		return fetched, nil
	}
	return result, nil
}

func (s *NoteService) GetNotesPaginated(ctx context.Context, page, pageSize int) (*domain.NotePage, error) {
	if page < 1 || pageSize < 1 {
		return nil, ErrInvalidPagination
	}

	if s.network.IsOnline() {
		fetched, total, err := s.remote.Page(ctx, page, pageSize)
		if err == nil {
			notes := s.mergeRemote(ctx, fetched)
			return &domain.NotePage{
				Notes:    notes,
				Page:     page,
				PageSize: pageSize,
				Total:    total,
				HasMore:  page*pageSize < total,
			}, nil
		}
		s.logger.Warn().Err(err).Int("page", page).Msg("remote page failed, slicing cache")
	}

	cached := s.cache.GetCachedNotes(ctx)
	start := (page - 1) * pageSize
	result := &domain.NotePage{
		Notes:    []domain.Note{},
		Page:     page,
		PageSize: pageSize,
		Total:    len(cached),
	}
	if start >= len(cached) {
		return result, nil
	}
	end := start + pageSize
	if end > len(cached) {
		end = len(cached)
	}
	result.Notes = cached[start:end]
	result.HasMore = end < len(cached)
	return result, nil
}

// mergeRemote adds fetched notes the cache does not know yet and returns
// the page with cached copies standing in for their remote versions.
func (s *NoteService) mergeRemote(ctx context.Context, fetched []domain.Note) []domain.Note {
	result := make([]domain.Note, len(fetched))
	copy(result, fetched)

	err := s.cache.ModifyNotes(ctx, func(current []domain.Note) ([]domain.Note, error) {
		index := make(map[string]int, len(current))
		for i, n := range current {
			index[n.ID] = i
		}

		added := false
		for i, n := range fetched {
			if at, ok := index[n.ID]; ok {
				result[i] = current[at]
				continue
			}
			index[n.ID] = len(current)
			current = append(current, n)
			added = true
		}
		if !added {
			return nil, cache.ErrSkipWrite
		}
		return current, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to merge remote page into cache")
	}
	return result
}

func (s *NoteService) GetNoteByID(ctx context.Context, id string) (*domain.Note, error) {
	notes, err := s.GetNotes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		if notes[i].ID == id {
			return &notes[i], nil
		}
	}
	return nil, ErrNoteNotFound
}

// CreateNote never waits on the network. The note is in the cache and its
// CREATE is queued before it is returned.
func (s *NoteService) CreateNote(ctx context.Context, userID string, req *domain.CreateNoteRequest) (*domain.Note, error) {
	now := s.now().UTC()

	category := req.Category
	if category == "" {
		category = s.cache.GetPreferences(ctx).DefaultCategory
	}
	if !category.Valid() {
		category = domain.CategoryPersonal
	}

	note := domain.Note{
		ID:         uuid.New().String(),
		Title:      req.Title,
		Content:    req.Content,
		Category:   category,
		IsFavorite: req.IsFavorite,
		IsPublic:   req.IsPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     userID,
		Location:   req.Location,
		Images:     req.Images,
		Tags:       req.Tags,
		LikedBy:    []string{},
	}

	err := s.cache.ModifyNotes(ctx, func(current []domain.Note) ([]domain.Note, error) {
		return upsert(current, note), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cache note: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, domain.OperationCreate, note.ID, note); err != nil {
		s.dropFromCache(ctx, note.ID)
		return nil, err
	}

	s.logger.Info().Str("note_id", note.ID).Msg("note created")
	s.notifier.NoteCreated(&note)
	s.kickSync()
	return &note, nil
}

func (s *NoteService) UpdateNote(ctx context.Context, id string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	if req.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	if s.canWriteThrough(ctx, id) {
		current, found := s.findCached(ctx, id)
		if !found {
			return nil, ErrNoteNotFound
		}

		patched := current
		req.Apply(&patched)
		patched.Touch(s.now().UTC())

		updated, err := s.remote.Update(ctx, patched, uuid.New().String())
		if err == nil {
			if err := s.replaceCached(ctx, *updated); err != nil {
				return nil, err
			}
			s.logger.Info().Str("note_id", id).Msg("note updated remotely")
			s.notifier.NoteUpdated(updated)
			return updated, nil
		}
		s.logger.Warn().Err(err).Str("note_id", id).Msg("remote update failed, queueing")
	}

	var updated domain.Note
	err := s.cache.ModifyNotes(ctx, func(current []domain.Note) ([]domain.Note, error) {
		for i := range current {
			if current[i].ID == id {
				req.Apply(&current[i])
				current[i].Touch(s.now().UTC())
				updated = current[i]
				return current, nil
			}
		}
		return nil, ErrNoteNotFound
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.Enqueue(ctx, domain.OperationUpdate, id, req); err != nil {
		return nil, err
	}

	s.logger.Info().Str("note_id", id).Msg("note updated locally")
	s.notifier.NoteUpdated(&updated)
	return &updated, nil
}

// DeleteNote removes the note locally first; the cache is what the UI sees.
func (s *NoteService) DeleteNote(ctx context.Context, id string) error {
	writeThrough := s.canWriteThrough(ctx, id)

	err := s.cache.ModifyNotes(ctx, func(current []domain.Note) ([]domain.Note, error) {
		for i := range current {
			if current[i].ID == id {
				return append(current[:i:i], current[i+1:]...), nil
			}
		}
		return nil, ErrNoteNotFound
	})
	if err != nil {
		return err
	}

	queued := true
	if writeThrough {
		if err := s.remote.Delete(ctx, id, uuid.New().String()); err != nil {
			s.logger.Warn().Err(err).Str("note_id", id).Msg("remote delete failed, queueing")
		} else {
			queued = false
		}
	}

	if queued {
		if _, err := s.queue.Enqueue(ctx, domain.OperationDelete, id, nil); err != nil {
			return err
		}
	}

	s.logger.Info().Str("note_id", id).Bool("queued", queued).Msg("note deleted")
	s.notifier.NoteDeleted(id)
	return nil
}

func (s *NoteService) ToggleFavorite(ctx context.Context, id string) (*domain.Note, error) {
	current, found := s.findCached(ctx, id)
	if !found {
		return nil, ErrNoteNotFound
	}
	flipped := !current.IsFavorite
	return s.UpdateNote(ctx, id, &domain.UpdateNoteRequest{IsFavorite: &flipped})
}

func (s *NoteService) TogglePublic(ctx context.Context, id string) (*domain.Note, error) {
	current, found := s.findCached(ctx, id)
	if !found {
		return nil, ErrNoteNotFound
	}
	flipped := !current.IsPublic
	return s.UpdateNote(ctx, id, &domain.UpdateNoteRequest{IsPublic: &flipped})
}

// ToggleLike adds or removes userID from the note's likers.
func (s *NoteService) ToggleLike(ctx context.Context, id, userID string) (*domain.Note, error) {
	current, found := s.findCached(ctx, id)
	if !found {
		return nil, ErrNoteNotFound
	}
	likedBy := append([]string(nil), current.LikedBy...)
	liked := domain.Note{LikedBy: likedBy}
	liked.ToggleLike(userID)
	return s.UpdateNote(ctx, id, &domain.UpdateNoteRequest{LikedBy: &liked.LikedBy})
}

// GetPublicFeed lists public notes, newest first.
func (s *NoteService) GetPublicFeed(ctx context.Context) ([]domain.Note, error) {
	notes, err := s.GetNotes(ctx)
	if err != nil {
		return nil, err
	}
	feed := filter(notes, func(n domain.Note) bool { return n.IsPublic })
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	return feed, nil
}

// SearchNotes matches query case-insensitively against title, content and
// category. An empty query matches everything.
func (s *NoteService) SearchNotes(ctx context.Context, query string) ([]domain.Note, error) {
	notes, err := s.GetNotes(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return notes, nil
	}
	return filter(notes, func(n domain.Note) bool {
		return strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Content), q) ||
			strings.Contains(strings.ToLower(string(n.Category)), q)
	}), nil
}

func (s *NoteService) GetNotesByCategory(ctx context.Context, category domain.Category) ([]domain.Note, error) {
	notes, err := s.GetNotes(ctx)
	if err != nil {
		return nil, err
	}
	return filter(notes, func(n domain.Note) bool { return n.Category == category }), nil
}

func (s *NoteService) GetFavoriteNotes(ctx context.Context) ([]domain.Note, error) {
	notes, err := s.GetNotes(ctx)
	if err != nil {
		return nil, err
	}
	return filter(notes, func(n domain.Note) bool { return n.IsFavorite }), nil
}

// canWriteThrough reports whether a mutation of noteID may go straight to
// the remote. Queued work for the same note has to reach the remote first.
func (s *NoteService) canWriteThrough(ctx context.Context, noteID string) bool {
	if s.remote.ReadOnly() || !s.network.IsOnline() {
		return false
	}
	for _, op := range s.queue.Pending(ctx) {
		if op.NoteID == noteID {
			return false
		}
	}
	return true
}

func (s *NoteService) findCached(ctx context.Context, id string) (domain.Note, bool) {
	for _, n := range s.cache.GetCachedNotes(ctx) {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Note{}, false
}

func (s *NoteService) replaceCached(ctx context.Context, note domain.Note) error {
	err := s.cache.ModifyNotes(ctx, func(current []domain.Note) ([]domain.Note, error) {
		for i := range current {
			if current[i].ID == note.ID {
				current[i] = note
				return current, nil
			}
		}
		return nil, cache.ErrSkipWrite
	})
	if err != nil {
		return fmt.Errorf("failed to cache note: %w", err)
	}
	return nil
}

func (s *NoteService) dropFromCache(ctx context.Context, id string) {
	err := s.cache.ModifyNotes(ctx, func(current []domain.Note) ([]domain.Note, error) {
		for i := range current {
			if current[i].ID == id {
				return append(current[:i:i], current[i+1:]...), nil
			}
		}
		return nil, cache.ErrSkipWrite
	})
	if err != nil && !errors.Is(err, cache.ErrSkipWrite) {
		s.logger.Error().Err(err).Str("note_id", id).Msg("failed to roll back cached note")
	}
}

func upsert(notes []domain.Note, note domain.Note) []domain.Note {
	for i := range notes {
		if notes[i].ID == note.ID {
			notes[i] = note
			return notes
		}
	}
	return append(notes, note)
}

func filter(notes []domain.Note, keep func(domain.Note) bool) []domain.Note {
	out := make([]domain.Note, 0, len(notes))
	for _, n := range notes {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}
