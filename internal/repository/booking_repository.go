package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/MindLooped/rupaay-fest/internal/model"
)

// BookingRepo provides CRUD operations for bookings and their student
// records.  A booking groups the seat holders registered under one
// submission; students live in a separate table owned by the booking
// via a cascading foreign key.  All timestamp fields are stored in UTC.
//
// Three unique indexes back the ledger invariants:
//   students.seat_label      – a seat belongs to at most one student.
//   bookings.reference       – references are globally unique.
//   bookings.email_confirmed – a generated column holding the email only
//                              while status is 'confirmed', so at most
//                              one confirmed booking exists per address.
// Violations are detected via MySQL error 1062 and translated into the
// matching domain sentinel by classifyDuplicate.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// BookingRecord mirrors the columns needed to insert a booking.  The
// generated ID and timestamps are populated by CreateTx.
type BookingRecord struct {
	ID               uint64
	Reference        string
	Email            string
	Name             string
	TicketsCount     uint32
	Status           string
	VerificationCode *string
}

// StudentRecord mirrors the students table for insertion.
type StudentRecord struct {
	SeatLabel      string
	Name           string
	RegistrationNo *string
	Email          string
}

// classifyDuplicate maps a MySQL duplicate-key error (1062) onto the
// domain sentinel matching the violated index.  Any other error is
// returned unchanged.
func classifyDuplicate(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	switch {
	case strings.Contains(msg, "seat_label"):
		return ErrSeatTaken
	case strings.Contains(msg, "email_confirmed"):
		return ErrDuplicateBooking
	case strings.Contains(msg, "reference"):
		return ErrReferenceTaken
	}
	return err
}

// CreateTx inserts a booking together with its student rows as one
// atomic write inside the provided transaction.  Either everything is
// inserted or nothing is: the caller rolls back on error, so no
// booking is ever left without its students and no student without a
// parent.  The generated booking ID and timestamps are populated on
// the record.  Unique-key violations come back as ErrSeatTaken,
// ErrDuplicateBooking or ErrReferenceTaken.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *BookingRecord, students []StudentRecord) (*model.Booking, error) {
	const q = `INSERT INTO bookings (reference, email, name, tickets_count, status, verification_code)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, rec.Reference, rec.Email, rec.Name, rec.TicketsCount, rec.Status, rec.VerificationCode)
	if err != nil {
		return nil, classifyDuplicate(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	rec.ID = uint64(id)

	if len(students) > 0 {
		query := `INSERT INTO students (booking_id, seat_label, name, registration_no, email) VALUES `
		args := make([]interface{}, 0, len(students)*5)
		for i, s := range students {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, rec.ID, s.SeatLabel, s.Name, s.RegistrationNo, s.Email)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, classifyDuplicate(err)
		}
	}

	// Query back the full row to populate timestamps and defaults.
	booking, err := r.getByIDTx(ctx, tx, rec.ID)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// getByIDTx loads a booking with its students inside a transaction.
func (r *BookingRepo) getByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT id, reference, email, name, tickets_count, status, verification_code, is_verified, created_at, updated_at
	           FROM bookings WHERE id = ?`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	const sq = `SELECT id, booking_id, seat_label, name, registration_no, email FROM students
	            WHERE booking_id = ? ORDER BY seat_label`
	rows, err := tx.QueryContext(ctx, sq, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if b.Students, err = scanStudents(rows); err != nil {
		return nil, err
	}
	return b, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanBooking.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var code sql.NullString
	if err := row.Scan(&b.ID, &b.Reference, &b.Email, &b.Name, &b.TicketsCount, &b.Status, &code, &b.IsVerified, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if code.Valid {
		v := code.String
		b.VerificationCode = &v
	}
	return &b, nil
}

func scanStudents(rows *sql.Rows) ([]model.Student, error) {
	students := make([]model.Student, 0, 1)
	for rows.Next() {
		var s model.Student
		var reg sql.NullString
		if err := rows.Scan(&s.ID, &s.BookingID, &s.SeatLabel, &s.Name, &reg, &s.Email); err != nil {
			return nil, err
		}
		if reg.Valid {
			v := reg.String
			s.RegistrationNo = &v
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// GetByReference returns a booking with its students, or ErrNotFound.
func (r *BookingRepo) GetByReference(ctx context.Context, reference string) (*model.Booking, error) {
	const q = `SELECT id, reference, email, name, tickets_count, status, verification_code, is_verified, created_at, updated_at
	           FROM bookings WHERE reference = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, reference))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	const sq = `SELECT id, booking_id, seat_label, name, registration_no, email FROM students
	            WHERE booking_id = ? ORDER BY seat_label`
	rows, err := r.db.QueryContext(ctx, sq, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if b.Students, err = scanStudents(rows); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByEmail returns the most recent booking for the address with its
// students, or ErrNotFound.  Any status matches; the verification flow
// uses it to locate pending bookings.
func (r *BookingRepo) GetByEmail(ctx context.Context, email string) (*model.Booking, error) {
	const q = `SELECT id, reference, email, name, tickets_count, status, verification_code, is_verified, created_at, updated_at
	           FROM bookings WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	const sq = `SELECT id, booking_id, seat_label, name, registration_no, email FROM students
	            WHERE booking_id = ? ORDER BY seat_label`
	rows, err := r.db.QueryContext(ctx, sq, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if b.Students, err = scanStudents(rows); err != nil {
		return nil, err
	}
	return b, nil
}

// HasConfirmedEmail reports whether the address already owns a
// confirmed booking.  This pre-check exists for a friendly error
// message; the email_confirmed unique index is the actual guard.
func (r *BookingRepo) HasConfirmedEmail(ctx context.Context, email string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM bookings WHERE email = ? AND status = 'confirmed')`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// SeatTaken reports whether any student record already holds the seat
// label.  Like HasConfirmedEmail this is advisory; the unique index on
// students.seat_label is authoritative.
func (r *BookingRepo) SeatTaken(ctx context.Context, seatLabel string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM students WHERE seat_label = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, seatLabel).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Count returns the total number of bookings of any status.  The
// orchestrator derives the next sequential reference from it.
func (r *BookingRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// BookedSeatLabels returns the seat labels held by students of
// confirmed bookings, the dynamic half of the availability picture.
func (r *BookingRepo) BookedSeatLabels(ctx context.Context) ([]string, error) {
	const q = `SELECT s.seat_label FROM students s
	           JOIN bookings b ON b.id = s.booking_id
	           WHERE b.status = 'confirmed'
	           ORDER BY s.seat_label`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	labels := make([]string, 0)
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Confirm transitions a pending booking to confirmed and marks the
// email verified.  It returns ErrInvalidState when the booking is not
// pending, so a repeated verification cannot re-fire side effects.
// The status guard in the WHERE clause makes the transition atomic;
// the email_confirmed unique index rejects a second confirmation for
// the same address as ErrDuplicateBooking.
func (r *BookingRepo) Confirm(ctx context.Context, bookingID uint64) error {
	const q = `UPDATE bookings SET status = 'confirmed', is_verified = 1 WHERE id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, bookingID)
	if err != nil {
		return classifyDuplicate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidState
	}
	return nil
}

// SearchPage is one page of the admin booking listing.
type SearchPage struct {
	Bookings []model.Booking `json:"bookings"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
}

// Search returns a page of bookings ordered newest first, optionally
// filtered by a case-insensitive substring match over email, name and
// reference.
func (r *BookingRepo) Search(ctx context.Context, page, limit int, search string) (*SearchPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	where := ""
	args := []interface{}{}
	if search != "" {
		where = ` WHERE LOWER(email) LIKE ? OR LOWER(name) LIKE ? OR LOWER(reference) LIKE ?`
		needle := "%" + strings.ToLower(search) + "%"
		args = append(args, needle, needle, needle)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT id, reference, email, name, tickets_count, status, verification_code, is_verified, created_at, updated_at
	      FROM bookings` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &SearchPage{Bookings: bookings, Total: total, Page: page, Limit: limit}, nil
}

// Stats are the aggregate counters shown on the admin dashboard.
type Stats struct {
	TotalBookings  int `json:"totalBookings"`
	UniqueEmails   int `json:"uniqueUsers"`
	ConfirmedSeats int `json:"confirmedSeats"`
}

// Stats returns the total booking count, the number of distinct email
// addresses and the number of seats under confirmed bookings.  The
// remaining-capacity figure is derived by the service from the grid.
func (r *BookingRepo) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	const q = `SELECT COUNT(*), COUNT(DISTINCT email) FROM bookings`
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.TotalBookings, &s.UniqueEmails); err != nil {
		return nil, err
	}
	const sq = `SELECT COUNT(*) FROM students s JOIN bookings b ON b.id = s.booking_id WHERE b.status = 'confirmed'`
	if err := r.db.QueryRowContext(ctx, sq).Scan(&s.ConfirmedSeats); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListConfirmedWithStudents returns every confirmed booking with its
// students, newest first, for the CSV export.  Students are fetched
// with a single IN query and stitched onto their bookings.
func (r *BookingRepo) ListConfirmedWithStudents(ctx context.Context) ([]model.Booking, error) {
	const q = `SELECT id, reference, email, name, tickets_count, status, verification_code, is_verified, created_at, updated_at
	           FROM bookings WHERE status = 'confirmed' ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		index[b.ID] = len(bookings)
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return bookings, nil
	}

	ids := make([]interface{}, 0, len(bookings))
	placeholders := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
		placeholders = append(placeholders, "?")
	}
	sq := `SELECT id, booking_id, seat_label, name, registration_no, email FROM students
	       WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
	       ORDER BY booking_id, seat_label`
	srows, err := r.db.QueryContext(ctx, sq, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var s model.Student
		var reg sql.NullString
		if err := srows.Scan(&s.ID, &s.BookingID, &s.SeatLabel, &s.Name, &reg, &s.Email); err != nil {
			return nil, err
		}
		if reg.Valid {
			v := reg.String
			s.RegistrationNo = &v
		}
		if idx, ok := index[s.BookingID]; ok {
			bookings[idx].Students = append(bookings[idx].Students, s)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// DeleteByReference removes a booking and, via the cascading foreign
// key, its student rows.  It returns ErrNotFound when no booking
// matches.  Used only by the administrative purge endpoint.
func (r *BookingRepo) DeleteByReference(ctx context.Context, reference string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE reference = ?`, reference)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
