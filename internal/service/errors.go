package service

import (
	"errors"

	"notes-sync-client/internal/queue"
)

var (
	ErrNoteNotFound       = errors.New("note not found")
	ErrInvalidPagination  = errors.New("page and page size must be at least 1")
	ErrEmptyUpdate        = errors.New("update has no fields")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidToken       = errors.New("invalid token")

	ErrOperationNotFound = queue.ErrOperationNotFound
)
