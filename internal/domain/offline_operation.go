package domain

import (
	"encoding/json"
	"time"
)

type OperationKind string

const (
	OperationCreate OperationKind = "CREATE"
	OperationUpdate OperationKind = "UPDATE"
	OperationDelete OperationKind = "DELETE"
)

// OperationStatus tracks how far a queued mutation got towards the remote.
type OperationStatus string

const (
	// StatusPending: applied locally, not yet visited by a drain.
	StatusPending OperationStatus = "pending"
	// StatusAttempted: visited by a drain against a remote that cannot
	// execute writes; dropped from the queue without confirmation.
	StatusAttempted OperationStatus = "attempted"
	// StatusFailed: replay failed and is waiting for NextRetryAt.
	StatusFailed OperationStatus = "failed"
	// StatusConfirmed: the remote accepted the replay.
	StatusConfirmed OperationStatus = "confirmed"
	// StatusDead: gave up after MaxAttempts; kept in the dead-letter list.
	StatusDead OperationStatus = "dead"
)

// OfflineOperation is a durable record of a mutation intent. ID doubles as
// the idempotency key when the operation is replayed.
type OfflineOperation struct {
	ID          string          `json:"id"`
	Kind        OperationKind   `json:"kind"`
	NoteID      string          `json:"note_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      OperationStatus `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

func (op *OfflineOperation) DecodePayload(v interface{}) error {
	if len(op.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(op.Payload, v)
}

type SyncReport struct {
	Skipped      bool      `json:"skipped"`
	Visited      int       `json:"visited"`
	Confirmed    int       `json:"confirmed"`
	Attempted    int       `json:"attempted"`
	Failed       int       `json:"failed"`
	DeadLettered int       `json:"dead_lettered"`
	Remaining    int       `json:"remaining"`
	SyncedAt     time.Time `json:"synced_at"`
}

type SyncStatus struct {
	Network      NetworkState `json:"network"`
	Online       bool         `json:"online"`
	Pending      int          `json:"pending"`
	DeadLetters  int          `json:"dead_letters"`
	LastSyncedAt *time.Time   `json:"last_synced_at,omitempty"`
}
