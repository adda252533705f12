package events

import "time"

const IdentityEnrolledTopic = "attendance.identity.enrolled.v1"

type IdentityEnrolledEvent struct {
	EventType  string    `json:"event_type"`
	IdentityID string    `json:"identity_id"`
	FullName   string    `json:"full_name"`
	Method     string    `json:"method"` // "face" | "credential"
	OccurredAt time.Time `json:"occurred_at"`
}
