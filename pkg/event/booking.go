package event

import (
	"encoding/json"
	"time"
)

const (
	// BookingsTopic carries engine notifications for presentation layers.
	BookingsTopic = "bookings.events"
	// AuthorityTopic carries canonical record changes pushed by the authority.
	AuthorityTopic = "bookings.authority"

	EventBookingCreated            = "booking.created"
	EventBookingStatusChanged      = "booking.status.changed"
	EventBookingArchived           = "booking.archived"
	EventBookingRestored           = "booking.restored"
	EventBookingDeleted            = "booking.deleted"
	EventBookingNotesSaved         = "booking.notes.saved"
	EventBookingConfirmationResent = "booking.confirmation.resent"

	EventAuthorityUpserted = "booking.upserted"
	EventAuthorityRemoved  = "booking.removed"
)

// BookingEvent reports the outcome of a booking command. Failed commands are
// emitted with Success=false and the failure kind in Reason.
type BookingEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	BookingID      string    `json:"booking_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Archived       bool      `json:"archived"`
	ActorID        string    `json:"actor_id,omitempty"`
	ActorRole      string    `json:"actor_role,omitempty"`
	Success        bool      `json:"success"`
	Reason         string    `json:"reason,omitempty"`
	Message        string    `json:"message,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// AuthorityChangeEvent is published by the authority whenever a booking
// record changes outside this client. Record holds the canonical booking JSON
// for upserts and is empty for removals.
type AuthorityChangeEvent struct {
	EventType  string          `json:"event_type"`
	BookingID  string          `json:"booking_id"`
	Record     json.RawMessage `json:"record,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
