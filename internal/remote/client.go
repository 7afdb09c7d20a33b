// Package remote talks to the remote note source and maps its records onto
// notes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/rs/zerolog"
)

// ErrReadOnly is returned for writes against a source that does not persist
// them. No request is sent.
var ErrReadOnly = errors.New("remote source is read-only")

type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NoteSource is the remote side of synchronization.
type NoteSource interface {
	List(ctx context.Context) ([]domain.Note, error)
	// Page returns one 1-based page and the total number of notes.
	Page(ctx context.Context, page, limit int) ([]domain.Note, int, error)
	Create(ctx context.Context, note domain.Note, idempotencyKey string) (*domain.Note, error)
	Update(ctx context.Context, note domain.Note, idempotencyKey string) (*domain.Note, error)
	Delete(ctx context.Context, id, idempotencyKey string) error
	ReadOnly() bool
}

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ReadOnly     bool
	AssumedTotal int
}

type Client struct {
	baseURL      string
	client       *http.Client
	readOnly     bool
	assumedTotal int
	logger       zerolog.Logger
	now          func() time.Time
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	assumed := cfg.AssumedTotal
	if assumed <= 0 {
		assumed = 100
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		client:       &http.Client{Timeout: timeout},
		readOnly:     cfg.ReadOnly,
		assumedTotal: assumed,
		logger:       logger.With().Str("component", "remote").Logger(),
		now:          time.Now,
	}
}

func (c *Client) ReadOnly() bool {
	return c.readOnly
}

func (c *Client) List(ctx context.Context) ([]domain.Note, error) {
	var posts []Post
	if _, err := c.do(ctx, "list", http.MethodGet, "/posts", nil, "", &posts); err != nil {
		return nil, err
	}
	return c.toNotes(posts), nil
}

func (c *Client) Page(ctx context.Context, page, limit int) ([]domain.Note, int, error) {
	q := url.Values{}
	q.Set("_page", strconv.Itoa(page))
	q.Set("_limit", strconv.Itoa(limit))

	var posts []Post
	header, err := c.do(ctx, "page", http.MethodGet, "/posts?"+q.Encode(), nil, "", &posts)
	if err != nil {
		return nil, 0, err
	}

	total := c.assumedTotal
	if raw := header.Get("X-Total-Count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			total = n
		}
	}
	return c.toNotes(posts), total, nil
}

func (c *Client) Create(ctx context.Context, note domain.Note, idempotencyKey string) (*domain.Note, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}

	post := PostFromNote(note)
	post.ID = 0

	var created Post
	if _, err := c.do(ctx, "create", http.MethodPost, "/posts", post, idempotencyKey, &created); err != nil {
		return nil, err
	}

	merged := mergePost(note, created)
	return &merged, nil
}

func (c *Client) Update(ctx context.Context, note domain.Note, idempotencyKey string) (*domain.Note, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}

	var updated Post
	path := "/posts/" + url.PathEscape(note.ID)
	if _, err := c.do(ctx, "update", http.MethodPut, path, PostFromNote(note), idempotencyKey, &updated); err != nil {
		return nil, err
	}

	// Keep the local id; some remotes echo a different one on PUT.
	merged := mergePost(note, updated)
	merged.ID = note.ID
	return &merged, nil
}

func (c *Client) Delete(ctx context.Context, id, idempotencyKey string) error {
	if c.readOnly {
		return ErrReadOnly
	}

	_, err := c.do(ctx, "delete", http.MethodDelete, "/posts/"+url.PathEscape(id), nil, idempotencyKey, nil)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}, idempotencyKey string, out interface{}) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", c.now().Sub(start)).
		Msg("remote request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return nil, &NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return resp.Header, nil
}

func (c *Client) toNotes(posts []Post) []domain.Note {
	fetchedAt := c.now().UTC()
	notes := make([]domain.Note, 0, len(posts))
	for _, p := range posts {
		notes = append(notes, NoteFromPost(p, fetchedAt))
	}
	return notes
}
