package remote

import (
	"strconv"
	"time"

	"notes-sync-client/internal/domain"
)

// Post is the record shape of the remote /posts resource.
type Post struct {
	UserID int    `json:"userId"`
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// NoteFromPost maps a remote post onto a note. Fields the remote does not
// carry get fixed defaults: personal category, not a favorite, public,
// no likes, and both timestamps set to fetchedAt.
func NoteFromPost(p Post, fetchedAt time.Time) domain.Note {
	return domain.Note{
		ID:         strconv.Itoa(p.ID),
		Title:      p.Title,
		Content:    p.Body,
		Category:   domain.CategoryPersonal,
		IsFavorite: false,
		IsPublic:   true,
		CreatedAt:  fetchedAt,
		UpdatedAt:  fetchedAt,
		UserID:     strconv.Itoa(p.UserID),
		LikedBy:    []string{},
	}
}

// PostFromNote keeps only what the remote stores. Non-numeric ids map to 0,
// which the remote treats as "assign one".
func PostFromNote(n domain.Note) Post {
	id, _ := strconv.Atoi(n.ID)
	userID, _ := strconv.Atoi(n.UserID)
	return Post{
		UserID: userID,
		ID:     id,
		Title:  n.Title,
		Body:   n.Content,
	}
}

// mergePost overlays the fields the remote answered with onto the local note.
func mergePost(local domain.Note, p Post) domain.Note {
	if p.ID != 0 {
		local.ID = strconv.Itoa(p.ID)
	}
	local.Title = p.Title
	local.Content = p.Body
	return local
}
