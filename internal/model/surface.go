package model

import "time"

type SurfaceKind string

const (
	SurfaceMain         SurfaceKind = "main"
	SurfaceFloating     SurfaceKind = "floating"
	SurfaceTray         SurfaceKind = "tray"
	SurfaceNotification SurfaceKind = "notification"
)

func (k SurfaceKind) Valid() bool {
	switch k {
	case SurfaceMain, SurfaceFloating, SurfaceTray, SurfaceNotification:
		return true
	}
	return false
}

type CommandType string

const (
	CommandStart  CommandType = "start"
	CommandPause  CommandType = "pause"
	CommandResume CommandType = "resume"
	CommandSkip   CommandType = "skip"
	CommandStop   CommandType = "stop"
)

func (t CommandType) Valid() bool {
	switch t {
	case CommandStart, CommandPause, CommandResume, CommandSkip, CommandStop:
		return true
	}
	return false
}

// Command is one of the five timer verbs. Discard only applies to stop and
// TaskID only to start.
type Command struct {
	Type      CommandType `json:"type"`
	Discard   bool        `json:"discard,omitempty"`
	TaskID    string      `json:"taskId,omitempty"`
	SurfaceID string      `json:"surfaceId,omitempty"`
}

type EnvelopeType string

const (
	EnvelopeSnapshot EnvelopeType = "snapshot"
)

// Envelope is the typed message exchanged between the authoritative process
// and its surfaces. Snapshots are always full, never diffs.
type Envelope struct {
	Type     EnvelopeType `json:"type"`
	Seq      int64        `json:"seq"`
	Snapshot *Snapshot    `json:"snapshot,omitempty"`
}

type SurfaceInfo struct {
	ID          string      `json:"id"`
	Kind        SurfaceKind `json:"kind"`
	ConnectedAt time.Time   `json:"connectedAt"`
	Dropped     int64       `json:"dropped"`
}
