package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RecordedSession is a session stored by the backend session repository.
// ID is the idempotency key the client supplied.
type RecordedSession struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	SessionID      string    `json:"sessionId"`
	Mode           Mode      `json:"mode"`
	PlannedSeconds int       `json:"plannedSeconds"`
	ActualSeconds  int       `json:"actualSeconds"`
	Interrupted    bool      `json:"interrupted"`
	Reason         EndReason `json:"reason"`
	PauseCount     int       `json:"pauseCount"`
	TaskID         string    `json:"taskId,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}
