package domain

import (
	"encoding/json"
	"time"
)

type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryIdeas    Category = "ideas"
	CategoryTodo     Category = "todo"
	CategoryOther    Category = "other"
)

var Categories = []Category{
	CategoryPersonal,
	CategoryWork,
	CategoryIdeas,
	CategoryTodo,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

type ImageAttachment struct {
	ID     string `json:"id"`
	URI    string `json:"uri"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Note is the cached unit of user content. Like counts are derived from
// LikedBy and are never stored on their own.
type Note struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Category   Category          `json:"category"`
	IsFavorite bool              `json:"is_favorite"`
	IsPublic   bool              `json:"is_public"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	UserID     string            `json:"user_id"`
	Location   *Location         `json:"location,omitempty"`
	Images     []ImageAttachment `json:"images,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	LikedBy    []string          `json:"liked_by"`
}

func (n *Note) Likes() int {
	return len(n.LikedBy)
}

func (n *Note) IsLikedBy(userID string) bool {
	for _, id := range n.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ToggleLike adds or removes userID from LikedBy and reports whether the note
// is liked by userID afterwards.
func (n *Note) ToggleLike(userID string) bool {
	for i, id := range n.LikedBy {
		if id == userID {
			n.LikedBy = append(n.LikedBy[:i:i], n.LikedBy[i+1:]...)
			return false
		}
	}
	n.LikedBy = append(n.LikedBy, userID)
	return true
}

// Touch advances UpdatedAt to now, or just past the previous value when the
// clock has not moved forward.
func (n *Note) Touch(now time.Time) {
	if !now.After(n.UpdatedAt) {
		now = n.UpdatedAt.Add(time.Millisecond)
	}
	if now.Before(n.CreatedAt) {
		now = n.CreatedAt
	}
	n.UpdatedAt = now
}

// MarshalJSON adds the derived likes count to the wire form.
func (n Note) MarshalJSON() ([]byte, error) {
	type alias Note
	likedBy := n.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	return json.Marshal(struct {
		alias
		LikedBy []string `json:"liked_by"`
		Likes   int      `json:"likes"`
	}{
		alias:   alias(n),
		LikedBy: likedBy,
		Likes:   len(likedBy),
	})
}

// UnmarshalJSON drops duplicate liker ids so LikedBy stays a set.
func (n *Note) UnmarshalJSON(data []byte) error {
	type alias Note
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Note(raw)
	n.LikedBy = dedupe(n.LikedBy)
	return nil
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type CreateNoteRequest struct {
	Title      string            `json:"title" validate:"required,max=200"`
	Content    string            `json:"content" validate:"max=100000"`
	Category   Category          `json:"category" validate:"omitempty,oneof=personal work ideas todo other"`
	IsFavorite bool              `json:"is_favorite"`
	IsPublic   bool              `json:"is_public"`
	Location   *Location         `json:"location"`
	Images     []ImageAttachment `json:"images" validate:"max=10"`
	Tags       []string          `json:"tags" validate:"max=20,dive,min=1,max=50"`
}

// UpdateNoteRequest is a partial note: nil fields are left untouched.
type UpdateNoteRequest struct {
	Title      *string            `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content    *string            `json:"content,omitempty" validate:"omitempty,max=100000"`
	Category   *Category          `json:"category,omitempty" validate:"omitempty,oneof=personal work ideas todo other"`
	IsFavorite *bool              `json:"is_favorite,omitempty"`
	IsPublic   *bool              `json:"is_public,omitempty"`
	Location   *Location          `json:"location,omitempty"`
	Images     *[]ImageAttachment `json:"images,omitempty"`
	Tags       *[]string          `json:"tags,omitempty"`
	LikedBy    *[]string          `json:"liked_by,omitempty"`
}

func (r *UpdateNoteRequest) IsEmpty() bool {
	return r.Title == nil && r.Content == nil && r.Category == nil &&
		r.IsFavorite == nil && r.IsPublic == nil && r.Location == nil &&
		r.Images == nil && r.Tags == nil && r.LikedBy == nil
}

// Apply merges the non-nil fields into note. It does not touch timestamps.
func (r *UpdateNoteRequest) Apply(note *Note) {
	if r.Title != nil {
		note.Title = *r.Title
	}
	if r.Content != nil {
		note.Content = *r.Content
	}
	if r.Category != nil {
		note.Category = *r.Category
	}
	if r.IsFavorite != nil {
		note.IsFavorite = *r.IsFavorite
	}
	if r.IsPublic != nil {
		note.IsPublic = *r.IsPublic
	}
	if r.Location != nil {
		note.Location = r.Location
	}
	if r.Images != nil {
		note.Images = *r.Images
	}
	if r.Tags != nil {
		note.Tags = *r.Tags
	}
	if r.LikedBy != nil {
		note.LikedBy = dedupe(append([]string(nil), (*r.LikedBy)...))
	}
}

type NotePage struct {
	Notes    []Note `json:"notes"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Total    int    `json:"total"`
	HasMore  bool   `json:"has_more"`
}
