package engine

import "time"

// NoteKind tells observers which part of the session changed.
type NoteKind int

const (
	NoteConnection NoteKind = iota
	NoteError
	NoteSent
	NoteLog
	NoteStatus
	NoteTestKind
	NoteTables
	NoteResults
	NoteDetect
	NoteSummary
	NoteHealth
	NoteSamples
	NoteDefinition
)

func (k NoteKind) String() string {
	switch k {
	case NoteConnection:
		return "connection"
	case NoteError:
		return "error"
	case NoteSent:
		return "sent"
	case NoteLog:
		return "log"
	case NoteStatus:
		return "status"
	case NoteTestKind:
		return "test-kind"
	case NoteTables:
		return "tables"
	case NoteResults:
		return "results"
	case NoteDetect:
		return "detect"
	case NoteSummary:
		return "summary"
	case NoteHealth:
		return "health"
	case NoteSamples:
		return "samples"
	case NoteDefinition:
		return "definition"
	}
	return "unknown"
}

// Notification is a state change emitted by the engine. Message is a log
// line for the user and may be empty for high-rate changes.
type Notification struct {
	Kind    NoteKind
	Message string
	Time    time.Time
}
