// Package response writes the JSON envelope every API endpoint answers with.
package response

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details []string    `json:"details,omitempty"`
}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{
		Success: statusCode < 400,
		Data:    data,
	})
}

func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// Accepted is used when a write was applied locally but is still waiting to
// reach the remote.
func Accepted(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusAccepted, data)
}

func Error(w http.ResponseWriter, statusCode int, err string) {
	write(w, statusCode, Response{Error: err})
}

func ValidationError(w http.ResponseWriter, details []string) {
	write(w, http.StatusBadRequest, Response{
		Error:   "Validation failed",
		Details: details,
	})
}

func BadRequest(w http.ResponseWriter, err string) {
	Error(w, http.StatusBadRequest, err)
}

func Unauthorized(w http.ResponseWriter, err string) {
	Error(w, http.StatusUnauthorized, err)
}

func NotFound(w http.ResponseWriter, err string) {
	Error(w, http.StatusNotFound, err)
}

func Conflict(w http.ResponseWriter, err string) {
	Error(w, http.StatusConflict, err)
}

func TooManyRequests(w http.ResponseWriter, err string) {
	Error(w, http.StatusTooManyRequests, err)
}

func InternalError(w http.ResponseWriter, err string) {
	Error(w, http.StatusInternalServerError, err)
}
