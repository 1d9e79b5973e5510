// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketIssuedEvent is published after a ticket has been issued for a
// confirmed booking.  It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type TicketIssuedEvent struct {
	Reference  string   `json:"reference"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	SeatLabels []string `json:"seats"`
	EventName  string   `json:"event_name"`
	IssuedAt   string   `json:"issued_at"`
}
