// Package auditlog maintains the append-only CSV record of successful
// bookings.  The file is denormalized: one row per seat holder, written
// after the booking is durable in the ledger.  The log is a convenience
// export, so every failure here is reported to the caller for logging
// but must never fail a booking.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

// header is the fixed 12-column layout of the export file.
var header = []string{
	"Booking Reference",
	"Email",
	"Booking Status",
	"Booked At",
	"Student Name",
	"Registration Number",
	"Seat Number",
	"Event Name",
	"Event Date",
	"Venue",
	"Payment ID",
	"Payment Amount",
}

// Entry is one booking to append.  Each student produces one CSV row
// sharing the booking-level fields.
type Entry struct {
	Reference     string
	Email         string
	Status        string
	CreatedAt     time.Time
	Students      []StudentRow
	PaymentID     string
	PaymentAmount int
}

// StudentRow carries the per-holder columns of an Entry.
type StudentRow struct {
	Name           string
	RegistrationNo string
	SeatLabel      string
}

// Logger appends booking rows to a CSV file, creating it with the
// header on first use.  Appends are serialized with a mutex so rows
// from concurrent bookings never interleave.
type Logger struct {
	mu        sync.Mutex
	path      string
	eventName string
	eventDate string
	venue     string
}

// New returns a Logger writing to path, stamping the given event
// metadata into every row.
func New(path, eventName, eventDate, venue string) *Logger {
	return &Logger{path: path, eventName: eventName, eventDate: eventDate, venue: venue}
}

// Path returns the location of the export file.
func (l *Logger) Path() string { return l.path }

// Append writes one row per student of the entry.  The header is
// written first when the file does not exist yet.
func (l *Logger) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	writeHeader := false
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("auditlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("auditlog: write header: %w", err)
		}
	}

	for _, row := range l.rows(e) {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("auditlog: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("auditlog: flush: %w", err)
	}
	return nil
}

// WriteReport writes the header and the given entries to w.  It shares
// the row layout with Append so on-demand exports match the running
// file column for column.
func (l *Logger) WriteReport(out io.Writer, entries []Entry) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("auditlog: write header: %w", err)
	}
	for _, e := range entries {
		for _, row := range l.rows(e) {
			if err := w.Write(row); err != nil {
				return fmt.Errorf("auditlog: write row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("auditlog: flush: %w", err)
	}
	return nil
}

func (l *Logger) rows(e Entry) [][]string {
	paymentID := e.PaymentID
	if paymentID == "" {
		paymentID = "N/A"
	}
	out := make([][]string, 0, len(e.Students))
	for _, s := range e.Students {
		out = append(out, []string{
			e.Reference,
			e.Email,
			e.Status,
			e.CreatedAt.UTC().Format(time.RFC3339),
			s.Name,
			s.RegistrationNo,
			s.SeatLabel,
			l.eventName,
			l.eventDate,
			l.venue,
			paymentID,
			strconv.Itoa(e.PaymentAmount),
		})
	}
	return out
}
