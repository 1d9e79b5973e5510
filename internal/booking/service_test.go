package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MindLooped/rupaay-fest/internal/auditlog"
	"github.com/MindLooped/rupaay-fest/internal/layout"
	"github.com/MindLooped/rupaay-fest/internal/mailer"
	"github.com/MindLooped/rupaay-fest/internal/model"
	"github.com/MindLooped/rupaay-fest/internal/queue"
	"github.com/MindLooped/rupaay-fest/internal/repository"
)

// fakeLedger is an in-memory ledger enforcing the same unique
// constraints as the MySQL schema: seat label, reference, and one
// confirmed booking per email.
type fakeLedger struct {
	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]*model.Booking

	countErr    error
	refFailures int // CreateBooking returns ErrReferenceTaken this many times
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{bookings: make(map[uint64]*model.Booking)}
}

func (f *fakeLedger) CreateBooking(ctx context.Context, rec *repository.BookingRecord, students []repository.StudentRecord) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refFailures > 0 {
		f.refFailures--
		return nil, repository.ErrReferenceTaken
	}
	for _, b := range f.bookings {
		if b.Reference == rec.Reference {
			return nil, repository.ErrReferenceTaken
		}
		if rec.Status == model.StatusConfirmed && b.Status == model.StatusConfirmed && b.Email == rec.Email {
			return nil, repository.ErrDuplicateBooking
		}
		for _, st := range b.Students {
			for _, in := range students {
				if st.SeatLabel == in.SeatLabel {
					return nil, repository.ErrSeatTaken
				}
			}
		}
	}
	f.nextID++
	b := &model.Booking{
		ID:               f.nextID,
		Reference:        rec.Reference,
		Email:            rec.Email,
		Name:             rec.Name,
		TicketsCount:     rec.TicketsCount,
		Status:           rec.Status,
		VerificationCode: rec.VerificationCode,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	for i, s := range students {
		b.Students = append(b.Students, model.Student{
			ID:             f.nextID*10 + uint64(i),
			BookingID:      b.ID,
			SeatLabel:      s.SeatLabel,
			Name:           s.Name,
			RegistrationNo: s.RegistrationNo,
			Email:          s.Email,
		})
	}
	f.bookings[b.ID] = b
	copied := *b
	return &copied, nil
}

func (f *fakeLedger) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Reference == ref {
			copied := *b
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLedger) GetByEmail(ctx context.Context, email string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.Booking
	for _, b := range f.bookings {
		if b.Email == email && (latest == nil || b.ID > latest.ID) {
			latest = b
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeLedger) HasConfirmedEmail(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Email == email && b.Status == model.StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) SeatTaken(ctx context.Context, seatLabel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		for _, s := range b.Students {
			if s.SeatLabel == seatLabel {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeLedger) Count(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings), nil
}

func (f *fakeLedger) BookedSeatLabels(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := []string{}
	for _, b := range f.bookings {
		if b.Status != model.StatusConfirmed {
			continue
		}
		for _, s := range b.Students {
			labels = append(labels, s.SeatLabel)
		}
	}
	return labels, nil
}

func (f *fakeLedger) Confirm(ctx context.Context, bookingID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.Status != model.StatusPending {
		return repository.ErrInvalidState
	}
	for _, other := range f.bookings {
		if other.ID != bookingID && other.Email == b.Email && other.Status == model.StatusConfirmed {
			return repository.ErrDuplicateBooking
		}
	}
	b.Status = model.StatusConfirmed
	b.IsVerified = true
	return nil
}

func (f *fakeLedger) Search(ctx context.Context, page, limit int, search string) (*repository.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Booking{}
	for _, b := range f.bookings {
		if search == "" || strings.Contains(strings.ToLower(b.Email+b.Name+b.Reference), strings.ToLower(search)) {
			out = append(out, *b)
		}
	}
	return &repository.SearchPage{Bookings: out, Total: len(out), Page: page, Limit: limit}, nil
}

func (f *fakeLedger) Stats(ctx context.Context) (*repository.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	emails := map[string]struct{}{}
	seats := 0
	for _, b := range f.bookings {
		emails[b.Email] = struct{}{}
		if b.Status == model.StatusConfirmed {
			seats += len(b.Students)
		}
	}
	return &repository.Stats{TotalBookings: len(f.bookings), UniqueEmails: len(emails), ConfirmedSeats: seats}, nil
}

func (f *fakeLedger) ListConfirmedWithStudents(ctx context.Context) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Booking{}
	for _, b := range f.bookings {
		if b.Status == model.StatusConfirmed {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeLedger) DeleteByReference(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, b := range f.bookings {
		if b.Reference == ref {
			delete(f.bookings, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

// fakeSender records outgoing mail and can be forced to fail.
type fakeSender struct {
	mu      sync.Mutex
	fail    bool
	codes   []string // "email:code"
	tickets []mailer.Ticket
}

func (f *fakeSender) SendVerificationCode(ctx context.Context, email, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.codes = append(f.codes, email+":"+code)
	return nil
}

func (f *fakeSender) SendTicket(ctx context.Context, t mailer.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.tickets = append(f.tickets, t)
	return nil
}

func (f *fakeSender) ticketCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets)
}

type fakeQR struct{ fail bool }

func (f *fakeQR) TicketPNG(ref, email, name string) ([]byte, error) {
	if f.fail {
		return nil, errors.New("qr failed")
	}
	return []byte("png:" + ref), nil
}

type fakeAudit struct {
	mu      sync.Mutex
	fail    bool
	entries []auditlog.Entry
}

func (f *fakeAudit) Append(e auditlog.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disk full")
	}
	f.entries = append(f.entries, e)
	return nil
}

type testRig struct {
	svc    *Service
	ledger *fakeLedger
	sender *fakeSender
	audit  *fakeAudit
	events []queue.TicketIssuedEvent
}

func newRig(t *testing.T, flow string) *testRig {
	t.Helper()
	grid, err := layout.New(8, 12, 2)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	rig := &testRig{
		ledger: newFakeLedger(),
		sender: &fakeSender{},
		audit:  &fakeAudit{},
	}
	var mu sync.Mutex
	rig.svc = NewService(Options{
		Ledger:    rig.ledger,
		Grid:      grid,
		Sender:    rig.sender,
		QR:        &fakeQR{},
		Audit:     rig.audit,
		RefPrefix: "RUPAAYFEST",
		Flow:      flow,
		Event:     mailer.EventInfo{Name: "Rupaay Fest", Date: "January 7, 2026", Venue: "Auditorium"},
		Publish: func(ctx context.Context, ev queue.TicketIssuedEvent) error {
			mu.Lock()
			defer mu.Unlock()
			rig.events = append(rig.events, ev)
			return nil
		},
	})
	// Side effects run inline so tests can assert on them directly.
	rig.svc.spawn = func(fn func()) { fn() }
	return rig
}

func submit(email, seat, name string) SubmitInput {
	return SubmitInput{
		Email:    email,
		Students: []StudentInput{{SeatNumber: seat, Name: name, RegistrationNumber: "REG1"}},
	}
}

func TestSubmitBookingDirectFlow(t *testing.T) {
	rig := newRig(t, FlowDirect)
	ctx := context.Background()

	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	if b.Reference != "RUPAAYFEST0001" {
		t.Errorf("reference = %q, want RUPAAYFEST0001", b.Reference)
	}
	if b.Status != model.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", b.Status)
	}
	if len(b.Students) != 1 || b.Students[0].SeatLabel != "C1" {
		t.Errorf("students = %+v", b.Students)
	}
	if rig.sender.ticketCount() != 1 {
		t.Errorf("expected 1 ticket email, got %d", rig.sender.ticketCount())
	}
	if len(rig.audit.entries) != 1 {
		t.Errorf("expected 1 audit entry, got %d", len(rig.audit.entries))
	}
	if len(rig.events) != 1 || rig.events[0].Reference != "RUPAAYFEST0001" {
		t.Errorf("events = %+v", rig.events)
	}

	// Same seat again, different identity.
	_, err = rig.svc.SubmitBooking(ctx, submit("ravi@campus.edu", "C1", "Ravi"))
	if !errors.Is(err, repository.ErrSeatTaken) {
		t.Fatalf("second C1 booking: err = %v, want ErrSeatTaken", err)
	}

	// Blocked row, empty ledger for it.
	_, err = rig.svc.SubmitBooking(ctx, submit("meena@campus.edu", "A1", "Meena"))
	if !errors.Is(err, repository.ErrSeatBlocked) {
		t.Fatalf("A1 booking: err = %v, want ErrSeatBlocked", err)
	}
}

func TestSubmitBookingValidation(t *testing.T) {
	rig := newRig(t, FlowDirect)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SubmitInput
	}{
		{"missing email", submit("", "C1", "Asha")},
		{"email without at sign", submit("asha.campus.edu", "C1", "Asha")},
		{"no students", SubmitInput{Email: "a@b.c"}},
		{"two students", SubmitInput{Email: "a@b.c", Students: []StudentInput{
			{SeatNumber: "C1", Name: "A"}, {SeatNumber: "C2", Name: "B"},
		}}},
		{"empty name", submit("a@b.c", "C1", "   ")},
		{"bad seat format", submit("a@b.c", "C99", "Asha")},
		{"row off grid", submit("a@b.c", "Z1", "Asha")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rig.svc.SubmitBooking(ctx, tc.in)
			if !errors.Is(err, repository.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
	if n, _ := rig.ledger.Count(ctx); n != 0 {
		t.Fatalf("validation failures mutated the ledger: %d bookings", n)
	}
}

func TestSubmitBookingDuplicateEmail(t *testing.T) {
	rig := newRig(t, FlowDirect)
	ctx := context.Background()
	if _, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha")); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := rig.svc.SubmitBooking(ctx, submit("Asha@Campus.edu", "C2", "Asha"))
	if !errors.Is(err, repository.ErrDuplicateBooking) {
		t.Fatalf("err = %v, want ErrDuplicateBooking", err)
	}
}

// A booking survives a failing notification sender: it is confirmed,
// audited and retrievable by reference.
func TestSubmitBookingNotificationIndependence(t *testing.T) {
	rig := newRig(t, FlowDirect)
	rig.sender.fail = true
	ctx := context.Background()

	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking with failing sender: %v", err)
	}
	got, err := rig.svc.GetBooking(ctx, b.Reference)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if got.Status != model.StatusConfirmed {
		t.Fatalf("status = %q, want confirmed", got.Status)
	}
	if len(rig.audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(rig.audit.entries))
	}
}

func TestSubmitBookingAuditFailureNonFatal(t *testing.T) {
	rig := newRig(t, FlowDirect)
	rig.audit.fail = true
	ctx := context.Background()
	if _, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha")); err != nil {
		t.Fatalf("SubmitBooking with failing audit log: %v", err)
	}
}

// A reference collision at write time retries with a fresh count.
func TestSubmitBookingReferenceRetry(t *testing.T) {
	rig := newRig(t, FlowDirect)
	rig.ledger.refFailures = 2
	ctx := context.Background()
	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	if !strings.HasPrefix(b.Reference, "RUPAAYFEST") {
		t.Fatalf("reference = %q", b.Reference)
	}
}

func TestSubmitBookingReferenceRandomFallback(t *testing.T) {
	rig := newRig(t, FlowDirect)
	rig.ledger.refFailures = referenceRetries
	ctx := context.Background()
	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	// The sequential form would be RUPAAYFEST0001; after exhausting
	// retries the suffix is random alphanumeric of length 6.
	suffix := strings.TrimPrefix(b.Reference, "RUPAAYFEST")
	if len(suffix) != 6 {
		t.Fatalf("fallback reference = %q, want random 6-char suffix", b.Reference)
	}
}

func TestVerifyFlow(t *testing.T) {
	rig := newRig(t, FlowVerify)
	ctx := context.Background()

	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	if b.Status != model.StatusPending {
		t.Fatalf("status = %q, want pending", b.Status)
	}
	if rig.sender.ticketCount() != 0 {
		t.Fatalf("ticket sent before verification")
	}
	if len(rig.sender.codes) != 1 {
		t.Fatalf("verification codes sent = %d, want 1", len(rig.sender.codes))
	}
	code := strings.SplitN(rig.sender.codes[0], ":", 2)[1]

	// Wrong code leaves state untouched.
	if _, err := rig.svc.VerifyEmail(ctx, "asha@campus.edu", "000000"); !errors.Is(err, repository.ErrVerification) {
		t.Fatalf("wrong code: err = %v, want ErrVerification", err)
	}
	got, _ := rig.svc.GetBooking(ctx, b.Reference)
	if got.Status != model.StatusPending {
		t.Fatalf("status after bad code = %q, want pending", got.Status)
	}

	// Unknown email.
	if _, err := rig.svc.VerifyEmail(ctx, "nobody@campus.edu", code); !errors.Is(err, repository.ErrVerification) {
		t.Fatalf("unknown email: err = %v, want ErrVerification", err)
	}

	// Correct code confirms and issues the ticket.
	v, err := rig.svc.VerifyEmail(ctx, "asha@campus.edu", code)
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if v.Status != model.StatusConfirmed || !v.IsVerified {
		t.Fatalf("verified booking = %+v", v)
	}
	if rig.sender.ticketCount() != 1 {
		t.Fatalf("tickets after verify = %d, want 1", rig.sender.ticketCount())
	}

	// A second verification with the same code does not re-confirm.
	if _, err := rig.svc.VerifyEmail(ctx, "asha@campus.edu", code); !errors.Is(err, repository.ErrVerification) {
		t.Fatalf("repeat verify: err = %v, want ErrVerification", err)
	}
	if rig.sender.ticketCount() != 1 {
		t.Fatalf("repeat verify issued another ticket")
	}
}

func TestResendTicket(t *testing.T) {
	rig := newRig(t, FlowDirect)
	ctx := context.Background()
	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	before, _ := rig.ledger.Count(ctx)

	for i := 0; i < 2; i++ {
		if _, err := rig.svc.ResendTicket(ctx, b.Reference); err != nil {
			t.Fatalf("ResendTicket #%d: %v", i+1, err)
		}
	}
	if rig.sender.ticketCount() != 3 { // initial issue + two resends
		t.Fatalf("tickets sent = %d, want 3", rig.sender.ticketCount())
	}
	if after, _ := rig.ledger.Count(ctx); after != before {
		t.Fatalf("resend mutated the ledger")
	}

	if _, err := rig.svc.ResendTicket(ctx, "RUPAAYFEST9999"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unknown reference: err = %v, want ErrNotFound", err)
	}
}

func TestResendTicketRequiresConfirmed(t *testing.T) {
	rig := newRig(t, FlowVerify)
	ctx := context.Background()
	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	if _, err := rig.svc.ResendTicket(ctx, b.Reference); !errors.Is(err, repository.ErrInvalidState) {
		t.Fatalf("resend on pending: err = %v, want ErrInvalidState", err)
	}
}

// Two simultaneous requests for the same seat: exactly one wins, the
// loser surfaces ErrSeatTaken from the storage-level guard.
func TestConcurrentSeatRace(t *testing.T) {
	rig := newRig(t, FlowDirect)
	// Real async dispatch for this test; we only assert ledger state.
	rig.svc.spawn = func(fn func()) { go fn() }
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := rig.svc.SubmitBooking(ctx, submit(fmt.Sprintf("user%d@campus.edu", n), "D5", "Holder"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins, losses := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repository.ErrSeatTaken):
			losses++
		default:
			t.Fatalf("unexpected error in race: %v", err)
		}
	}
	if wins != 1 || losses != attempts-1 {
		t.Fatalf("wins=%d losses=%d, want 1/%d", wins, losses, attempts-1)
	}

	// Final ledger holds D5 exactly once.
	labels, _ := rig.ledger.BookedSeatLabels(ctx)
	count := 0
	for _, l := range labels {
		if l == "D5" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("seat D5 bound %d times", count)
	}
}

func TestAvailableSeats(t *testing.T) {
	rig := newRig(t, FlowDirect)
	ctx := context.Background()
	if _, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha")); err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	av, err := rig.svc.AvailableSeats(ctx)
	if err != nil {
		t.Fatalf("AvailableSeats: %v", err)
	}
	if len(av.AvailableSeats)+len(av.BookedSeats) != 96 {
		t.Fatalf("partition size = %d, want 96", len(av.AvailableSeats)+len(av.BookedSeats))
	}
	for _, l := range av.AvailableSeats {
		if l == "C1" || strings.HasPrefix(l, "A") || strings.HasPrefix(l, "B") {
			t.Fatalf("label %s must not be available", l)
		}
	}
}

func TestStatsDerivesRemainingCapacity(t *testing.T) {
	rig := newRig(t, FlowDirect)
	ctx := context.Background()
	if _, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha")); err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	st, err := rig.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// 6 bookable rows of 12 seats, one confirmed.
	if st.AvailableSeats != 71 {
		t.Errorf("AvailableSeats = %d, want 71", st.AvailableSeats)
	}
	if st.TotalBookings != 1 || st.UniqueUsers != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPurgeBooking(t *testing.T) {
	rig := newRig(t, FlowDirect)
	ctx := context.Background()
	b, err := rig.svc.SubmitBooking(ctx, submit("asha@campus.edu", "C1", "Asha"))
	if err != nil {
		t.Fatalf("SubmitBooking: %v", err)
	}
	if err := rig.svc.PurgeBooking(ctx, b.Reference); err != nil {
		t.Fatalf("PurgeBooking: %v", err)
	}
	if _, err := rig.svc.GetBooking(ctx, b.Reference); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("booking survived purge: %v", err)
	}
	// The seat is bookable again.
	if _, err := rig.svc.SubmitBooking(ctx, submit("ravi@campus.edu", "C1", "Ravi")); err != nil {
		t.Fatalf("rebooking purged seat: %v", err)
	}
}
