package model

import "time"

// Booking statuses.  A booking starts as pending when the email
// verification flow is enabled and becomes confirmed once the
// holder proves ownership of the address.  The direct flow creates
// bookings as confirmed immediately.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

// Booking records a single reservation transaction for the event.
// It aggregates the seat holders registered under one submission and
// tracks the verification lifecycle.  At most one confirmed booking
// may exist per email address.
//
// Fields:
//  ID               – primary key identifier.
//  Reference        – unique human-readable booking reference.
//  Email            – contact address of the person who booked.
//  Name             – display name shown on the ticket.
//  TicketsCount     – number of seats held under this booking.
//  Status           – lifecycle state (pending, confirmed).
//  VerificationCode – 6-digit code mailed to the holder, nil once unused.
//  IsVerified       – whether the email address has been verified.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               uint64    `json:"id"`                // bookings.id
	Reference        string    `json:"reference"`         // bookings.reference
	Email            string    `json:"email"`             // bookings.email
	Name             string    `json:"name"`              // bookings.name
	TicketsCount     uint32    `json:"ticketsCount"`      // bookings.tickets_count
	Status           string    `json:"status"`            // bookings.status
	VerificationCode *string   `json:"-"`                 // bookings.verification_code (never serialized)
	IsVerified       bool      `json:"isVerified"`        // bookings.is_verified
	CreatedAt        time.Time `json:"createdAt"`         // bookings.created_at
	UpdatedAt        time.Time `json:"updatedAt"`         // bookings.updated_at
	Students         []Student `json:"students,omitempty"`
}

// Student is one named occupant of one seat, owned by exactly one
// booking.  The seat label is unique system-wide: no two student
// records may ever hold the same label.  Student rows are removed
// together with their parent booking (cascade).
//
// Fields:
//  ID             – primary key identifier.
//  BookingID      – parent booking.
//  SeatLabel      – row letter plus seat number, e.g. "C7".
//  Name           – occupant name.
//  RegistrationNo – optional campus registration identifier.
//  Email          – contact address copied from the booking.
type Student struct {
	ID             uint64  `json:"id"`                           // students.id
	BookingID      uint64  `json:"-"`                            // students.booking_id
	SeatLabel      string  `json:"seatNumber"`                   // students.seat_label
	Name           string  `json:"name"`                         // students.name
	RegistrationNo *string `json:"registrationNumber,omitempty"` // students.registration_no (nullable)
	Email          string  `json:"email"`                        // students.email
}
