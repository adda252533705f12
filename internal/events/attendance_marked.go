package events

import "time"

const AttendanceMarkedTopic = "attendance.session.marked.v1"

// AttendanceMarkedEvent is emitted on every login/logout transition. It is
// the structured replacement for the original process-wide event emitter:
// downstream dispatchers subscribe to the topic instead of the core pushing
// into a global broadcaster.
type AttendanceMarkedEvent struct {
	EventType  string    `json:"event_type"` // "logged_in" | "logged_out"
	EntryID    string    `json:"entry_id"`
	IdentityID string    `json:"identity_id"`
	Day        string    `json:"day"` // YYYY-MM-DD
	Method     string    `json:"method"`
	Confidence float64   `json:"confidence"`
	OccurredAt time.Time `json:"occurred_at"`
}
