package domain

import "fmt"

// EventKind is the type of a change-feed notification.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ParseKind validates a wire value.
func ParseKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventInsert, EventUpdate, EventDelete:
		return k, nil
	default:
		return "", fmt.Errorf("unknown event kind %q", s)
	}
}

// Event is one change-feed message. For deletes only Record.ID is meaningful.
type Event struct {
	Kind   EventKind `json:"kind"`
	Record Bookmark  `json:"record"`
}
