// Package booking contains the orchestrator that drives a booking
// attempt from seat validation through persistence, notification and
// audit logging.  The persistent ledger is the single source of truth;
// everything after the ledger write (QR, email, event publish, CSV row)
// is best-effort and can never undo or fail a durable booking.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MindLooped/rupaay-fest/internal/auditlog"
	"github.com/MindLooped/rupaay-fest/internal/layout"
	"github.com/MindLooped/rupaay-fest/internal/mailer"
	"github.com/MindLooped/rupaay-fest/internal/model"
	"github.com/MindLooped/rupaay-fest/internal/queue"
	"github.com/MindLooped/rupaay-fest/internal/reference"
	"github.com/MindLooped/rupaay-fest/internal/repository"
)

// Booking flows.  FlowVerify creates bookings as pending and confirms
// them through an emailed code; FlowDirect confirms immediately.
const (
	FlowVerify = "verify"
	FlowDirect = "direct"
)

// referenceRetries bounds how often a sequential reference is retried
// after a collision before falling back to a random one.
const referenceRetries = 3

// Ledger is the persistence surface the orchestrator depends on.  It
// is satisfied by *repository.BookingRepo and by fakes in tests.
type Ledger interface {
	CreateBooking(ctx context.Context, rec *repository.BookingRecord, students []repository.StudentRecord) (*model.Booking, error)
	GetByReference(ctx context.Context, ref string) (*model.Booking, error)
	GetByEmail(ctx context.Context, email string) (*model.Booking, error)
	HasConfirmedEmail(ctx context.Context, email string) (bool, error)
	SeatTaken(ctx context.Context, seatLabel string) (bool, error)
	Count(ctx context.Context) (int, error)
	BookedSeatLabels(ctx context.Context) ([]string, error)
	Confirm(ctx context.Context, bookingID uint64) error
	Search(ctx context.Context, page, limit int, search string) (*repository.SearchPage, error)
	Stats(ctx context.Context) (*repository.Stats, error)
	ListConfirmedWithStudents(ctx context.Context) ([]model.Booking, error)
	DeleteByReference(ctx context.Context, ref string) error
}

// QREncoder renders ticket metadata as a PNG image.
type QREncoder interface {
	TicketPNG(ref, email, name string) ([]byte, error)
}

// AuditLog appends denormalized booking rows to the export file.
type AuditLog interface {
	Append(e auditlog.Entry) error
}

// EventPublisher pushes a ticket-issued event onto the broker.
type EventPublisher func(ctx context.Context, ev queue.TicketIssuedEvent) error

// Options configures a Service.
type Options struct {
	Ledger      Ledger
	Grid        layout.Grid
	Sender      mailer.Sender
	QR          QREncoder
	Audit       AuditLog
	Publish     EventPublisher
	RefPrefix   string
	Flow        string // FlowVerify (default) or FlowDirect
	Event       mailer.EventInfo
	MailTimeout time.Duration
}

// Service is the booking orchestrator.  All collaborators are injected
// so it carries no package-level state and can be exercised against a
// fake ledger.
type Service struct {
	ledger      Ledger
	grid        layout.Grid
	sender      mailer.Sender
	qr          QREncoder
	audit       AuditLog
	publish     EventPublisher
	refPrefix   string
	flow        string
	event       mailer.EventInfo
	mailTimeout time.Duration

	// spawn runs post-commit side effects.  It defaults to `go fn()`
	// so notification work never blocks the response path; tests
	// replace it with a synchronous call.
	spawn func(fn func())
}

// NewService constructs the orchestrator.  Ledger, Sender, QR and
// Audit must be non-nil; Publish may be nil to disable the broker.
func NewService(opts Options) *Service {
	if opts.Ledger == nil || opts.Sender == nil || opts.QR == nil || opts.Audit == nil {
		panic("nil collaborator passed to booking.NewService")
	}
	flow := opts.Flow
	if flow == "" {
		flow = FlowVerify
	}
	timeout := opts.MailTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		ledger:      opts.Ledger,
		grid:        opts.Grid,
		sender:      opts.Sender,
		qr:          opts.QR,
		audit:       opts.Audit,
		publish:     opts.Publish,
		refPrefix:   opts.RefPrefix,
		flow:        flow,
		event:       opts.Event,
		mailTimeout: timeout,
		spawn:       func(fn func()) { go fn() },
	}
}

// StudentInput is one seat/holder pair of a submission.
type StudentInput struct {
	SeatNumber         string `json:"seatNumber"`
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
}

// SubmitInput is a booking submission.
type SubmitInput struct {
	Email    string         `json:"email"`
	Students []StudentInput `json:"students"`
}

// SubmitBooking validates a submission, assigns a reference, persists
// the booking atomically with its student row and fires the follow-up
// side effects.  Validation and state errors return before any
// mutation; once the ledger write commits, notification and audit
// failures are logged but the booking stands.
func (s *Service) SubmitBooking(ctx context.Context, in SubmitInput) (*model.Booking, error) {
	// Structural validation: exactly one seat/holder pair, a plausible
	// email, a non-empty name, and a seat label matching the grid.
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", repository.ErrValidation)
	}
	if len(in.Students) != 1 {
		return nil, fmt.Errorf("%w: exactly one student/seat must be selected", repository.ErrValidation)
	}
	holder := in.Students[0]
	name := strings.TrimSpace(holder.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: student name is required", repository.ErrValidation)
	}
	seat, err := s.grid.ParseSeat(strings.TrimSpace(holder.SeatNumber))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid seat number format", repository.ErrValidation)
	}

	// Duplicate-identity pre-check.  The email_confirmed unique index
	// remains the guard for the race window between check and write.
	taken, err := s.ledger.HasConfirmedEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("booking: duplicate check: %w", err)
	}
	if taken {
		return nil, repository.ErrDuplicateBooking
	}

	// Seat-collision pre-check, same advisory role.
	held, err := s.ledger.SeatTaken(ctx, seat.Label())
	if err != nil {
		return nil, fmt.Errorf("booking: seat check: %w", err)
	}
	if held {
		return nil, fmt.Errorf("%w: seat %s", repository.ErrSeatTaken, seat.Label())
	}

	// Blocked-range check is independent of ledger state.
	if s.grid.IsBlocked(seat) {
		return nil, fmt.Errorf("%w: seat %s", repository.ErrSeatBlocked, seat.Label())
	}

	status := model.StatusConfirmed
	var code *string
	if s.flow == FlowVerify {
		status = model.StatusPending
		c, err := reference.VerificationCode()
		if err != nil {
			return nil, fmt.Errorf("booking: verification code: %w", err)
		}
		code = &c
	}

	var regNo *string
	if reg := strings.TrimSpace(holder.RegistrationNumber); reg != "" {
		regNo = &reg
	}
	students := []repository.StudentRecord{{
		SeatLabel:      seat.Label(),
		Name:           name,
		RegistrationNo: regNo,
		Email:          email,
	}}

	booking, err := s.persistWithReference(ctx, &repository.BookingRecord{
		Email:            email,
		Name:             name,
		TicketsCount:     1,
		Status:           status,
		VerificationCode: code,
	}, students)
	if err != nil {
		return nil, err
	}

	// The booking is durable from here on.  Notification is fired and
	// forgotten; the audit row is appended regardless of its outcome.
	if s.flow == FlowVerify {
		verification := *code
		s.spawn(func() { s.sendVerificationCode(booking.Email, verification) })
	} else {
		b := *booking
		s.spawn(func() { s.issueTicket(&b) })
	}
	s.appendAudit(booking)

	return booking, nil
}

// persistWithReference assigns a sequential reference from the current
// booking count and writes the booking.  A collision on the reference
// column triggers a retry with a fresh count; after referenceRetries
// attempts it switches to a random reference.  Seat and identity
// violations surface unchanged.
func (s *Service) persistWithReference(ctx context.Context, rec *repository.BookingRecord, students []repository.StudentRecord) (*model.Booking, error) {
	for attempt := 0; ; attempt++ {
		if attempt < referenceRetries {
			count, err := s.ledger.Count(ctx)
			if err != nil {
				return nil, fmt.Errorf("booking: count: %w", err)
			}
			rec.Reference = reference.Sequential(s.refPrefix, count+1)
		} else {
			ref, err := reference.Random(s.refPrefix, reference.RandomLength)
			if err != nil {
				return nil, fmt.Errorf("booking: random reference: %w", err)
			}
			rec.Reference = ref
		}

		booking, err := s.ledger.CreateBooking(ctx, rec, students)
		if err == nil {
			return booking, nil
		}
		if errors.Is(err, repository.ErrReferenceTaken) && attempt < referenceRetries+1 {
			continue
		}
		if errors.Is(err, repository.ErrSeatTaken) || errors.Is(err, repository.ErrDuplicateBooking) {
			return nil, err
		}
		return nil, fmt.Errorf("booking: persist: %w", err)
	}
}

// VerifyEmail checks the submitted code against the pending booking
// for the address.  On an exact match the booking transitions to
// confirmed and the ticket is issued as a side effect.  Any mismatch,
// missing booking or non-pending state leaves the ledger untouched.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*model.Booking, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: email and code are required", repository.ErrValidation)
	}
	booking, err := s.ledger.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrVerification
		}
		return nil, fmt.Errorf("booking: verify lookup: %w", err)
	}
	if booking.Status != model.StatusPending || booking.VerificationCode == nil || *booking.VerificationCode != code {
		return nil, repository.ErrVerification
	}
	if err := s.ledger.Confirm(ctx, booking.ID); err != nil {
		// A concurrent verification may have flipped the status first,
		// or the address may have won a confirmed booking elsewhere.
		if errors.Is(err, repository.ErrInvalidState) || errors.Is(err, repository.ErrDuplicateBooking) {
			return nil, repository.ErrVerification
		}
		return nil, fmt.Errorf("booking: confirm: %w", err)
	}
	booking.Status = model.StatusConfirmed
	booking.IsVerified = true

	b := *booking
	s.spawn(func() { s.issueTicket(&b) })
	return booking, nil
}

// ResendTicket regenerates the QR code and resends the ticket email
// for a confirmed booking.  It mutates nothing and can be called any
// number of times.
func (s *Service) ResendTicket(ctx context.Context, ref string) (*model.Booking, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("%w: booking reference is required", repository.ErrValidation)
	}
	booking, err := s.ledger.GetByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("booking: resend lookup: %w", err)
	}
	if booking.Status != model.StatusConfirmed {
		return nil, fmt.Errorf("%w: ticket can only be resent for confirmed bookings", repository.ErrInvalidState)
	}
	b := *booking
	s.spawn(func() { s.issueTicket(&b) })
	return booking, nil
}

// GetBooking returns the booking with its students for the reference.
func (s *Service) GetBooking(ctx context.Context, ref string) (*model.Booking, error) {
	return s.ledger.GetByReference(ctx, ref)
}

// Availability is the partition of the seat grid returned to clients.
type Availability struct {
	AvailableSeats []string `json:"availableSeats"`
	BookedSeats    []string `json:"bookedSeats"`
}

// AvailableSeats recomputes seat availability from the grid and the
// ledger on every call; nothing is cached between requests.
func (s *Service) AvailableSeats(ctx context.Context) (*Availability, error) {
	booked, err := s.ledger.BookedSeatLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: booked seats: %w", err)
	}
	available, unavailable := s.grid.Availability(booked)
	return &Availability{AvailableSeats: available, BookedSeats: unavailable}, nil
}

// ListBookings returns one page of the admin listing.
func (s *Service) ListBookings(ctx context.Context, page, limit int, search string) (*repository.SearchPage, error) {
	return s.ledger.Search(ctx, page, limit, search)
}

// AdminStats is the admin dashboard aggregate.
type AdminStats struct {
	TotalBookings  int `json:"totalBookings"`
	UniqueUsers    int `json:"uniqueUsers"`
	AvailableSeats int `json:"availableSeats"`
}

// Stats aggregates booking counters and derives remaining capacity as
// the bookable grid size minus seats under confirmed bookings.
func (s *Service) Stats(ctx context.Context) (*AdminStats, error) {
	st, err := s.ledger.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: stats: %w", err)
	}
	capacity := (s.grid.Rows - s.grid.BlockedRows) * s.grid.SeatsPerRow
	remaining := capacity - st.ConfirmedSeats
	if remaining < 0 {
		remaining = 0
	}
	return &AdminStats{
		TotalBookings:  st.TotalBookings,
		UniqueUsers:    st.UniqueEmails,
		AvailableSeats: remaining,
	}, nil
}

// ExportConfirmed returns every confirmed booking with students for
// the admin CSV download.
func (s *Service) ExportConfirmed(ctx context.Context) ([]model.Booking, error) {
	return s.ledger.ListConfirmedWithStudents(ctx)
}

// PurgeBooking removes a booking and its student rows entirely.  This
// is the only path that ever deletes ledger state.
func (s *Service) PurgeBooking(ctx context.Context, ref string) error {
	return s.ledger.DeleteByReference(ctx, ref)
}

// sendVerificationCode mails the code for a pending booking.  Failures
// are logged; the booking already exists and the code can be re-sent
// by submitting again after an administrative purge.
func (s *Service) sendVerificationCode(email, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.mailTimeout)
	defer cancel()
	if err := s.sender.SendVerificationCode(ctx, email, code); err != nil {
		log.Printf("booking: verification email to %s failed: %v", email, err)
	}
}

// issueTicket renders the QR code, sends the ticket email and
// publishes the ticket-issued event.  Every step is best-effort and
// only logged on failure; by the time this runs the booking is
// durable and its state never changes here.
func (s *Service) issueTicket(b *model.Booking) {
	png, err := s.qr.TicketPNG(b.Reference, b.Email, b.Name)
	if err != nil {
		log.Printf("booking: QR generation for %s failed: %v", b.Reference, err)
		return
	}
	seats := make([]string, 0, len(b.Students))
	for _, st := range b.Students {
		seats = append(seats, st.SeatLabel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.mailTimeout)
	defer cancel()
	if err := s.sender.SendTicket(ctx, mailer.Ticket{
		Name:      b.Name,
		Email:     b.Email,
		Reference: b.Reference,
		Seats:     seats,
		QRPNG:     png,
	}); err != nil {
		log.Printf("booking: ticket email for %s failed: %v", b.Reference, err)
	}

	if s.publish != nil {
		_ = s.publish(ctx, queue.TicketIssuedEvent{
			Reference:  b.Reference,
			Email:      b.Email,
			Name:       b.Name,
			SeatLabels: seats,
			EventName:  s.event.Name,
			IssuedAt:   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// appendAudit writes the denormalized CSV rows for a booking.  Audit
// failures never affect the request outcome.
func (s *Service) appendAudit(b *model.Booking) {
	rows := make([]auditlog.StudentRow, 0, len(b.Students))
	for _, st := range b.Students {
		reg := ""
		if st.RegistrationNo != nil {
			reg = *st.RegistrationNo
		}
		rows = append(rows, auditlog.StudentRow{
			Name:           st.Name,
			RegistrationNo: reg,
			SeatLabel:      st.SeatLabel,
		})
	}
	if err := s.audit.Append(auditlog.Entry{
		Reference: b.Reference,
		Email:     b.Email,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		Students:  rows,
	}); err != nil {
		log.Printf("booking: audit append for %s failed: %v", b.Reference, err)
	}
}
