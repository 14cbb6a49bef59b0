package model

import (
	"encoding/json"
	"time"
)

type ActionKind string

const ActionRecordSession ActionKind = "record_session"

type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionDeadLetter ActionStatus = "dead_letter"
)

// PendingSyncAction is a queued mutation waiting for backend acknowledgement.
// Only the retry metadata ever changes after enqueue.
type PendingSyncAction struct {
	ID             string          `json:"id"`
	Seq            int64           `json:"seq"`
	Kind           ActionKind      `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	Status         ActionStatus    `json:"status"`
	RetryCount     int             `json:"retryCount"`
	LastError      string          `json:"lastError,omitempty"`
	NextAttemptAt  time.Time       `json:"nextAttemptAt"`
	CreatedAt      time.Time       `json:"createdAt"`
	DeadLetteredAt *time.Time      `json:"deadLetteredAt,omitempty"`
}

type SyncStatus struct {
	Online      bool       `json:"online"`
	Syncing     bool       `json:"syncing"`
	Pending     int        `json:"pending"`
	DeadLetters int        `json:"deadLetters"`
	LastSyncAt  *time.Time `json:"lastSyncAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}
