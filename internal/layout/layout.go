// Package layout models the static seat grid of the venue.  The grid is
// pure configuration: rows of equal capacity identified by consecutive
// letters, with a prefix of rows permanently blocked from booking.
// Availability is always derived on demand from the grid plus the set of
// seat labels currently held in the ledger; nothing here is cached or
// materialized as database rows.
package layout

import (
	"fmt"
	"strconv"
)

// Grid describes the bookable seat plan for the event.
//
// Fields:
//  Rows        – number of rows, labelled 'A' upward.
//  SeatsPerRow – seats in each row, numbered from 1.
//  BlockedRows – count of leading rows excluded from booking.
type Grid struct {
	Rows        int
	SeatsPerRow int
	BlockedRows int
}

// New constructs a Grid and validates its dimensions.  Rows beyond 'Z'
// are rejected because labels use a single letter.
func New(rows, seatsPerRow, blockedRows int) (Grid, error) {
	if rows < 1 || rows > 26 {
		return Grid{}, fmt.Errorf("layout: rows must be between 1 and 26, got %d", rows)
	}
	if seatsPerRow < 1 {
		return Grid{}, fmt.Errorf("layout: seats per row must be positive, got %d", seatsPerRow)
	}
	if blockedRows < 0 || blockedRows > rows {
		return Grid{}, fmt.Errorf("layout: blocked rows %d out of range for %d rows", blockedRows, rows)
	}
	return Grid{Rows: rows, SeatsPerRow: seatsPerRow, BlockedRows: blockedRows}, nil
}

// Seat identifies one physical seat by its parsed label components.
type Seat struct {
	Row    byte // row letter, 'A'..'A'+Rows-1
	Number int  // 1..SeatsPerRow
}

// Label renders the canonical seat label, e.g. "C7".
func (s Seat) Label() string { return string(s.Row) + strconv.Itoa(s.Number) }

// ParseSeat validates a label against the grid and returns its parsed
// form.  Labels must be an upper-case row letter followed by a seat
// number with no leading zero, both within the grid bounds.
func (g Grid) ParseSeat(label string) (Seat, error) {
	if len(label) < 2 {
		return Seat{}, fmt.Errorf("layout: invalid seat label %q", label)
	}
	row := label[0]
	if row < 'A' || row >= 'A'+byte(g.Rows) {
		return Seat{}, fmt.Errorf("layout: row %q is not part of the seat plan", string(row))
	}
	digits := label[1:]
	if digits[0] == '0' {
		return Seat{}, fmt.Errorf("layout: invalid seat label %q", label)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > g.SeatsPerRow {
		return Seat{}, fmt.Errorf("layout: seat number in %q is out of range 1..%d", label, g.SeatsPerRow)
	}
	return Seat{Row: row, Number: n}, nil
}

// IsBlocked reports whether the seat falls in the permanently excluded
// row prefix.  The check is independent of ledger state.
func (g Grid) IsBlocked(s Seat) bool {
	return int(s.Row-'A') < g.BlockedRows
}

// Labels enumerates every seat label in the grid in row-major order.
func (g Grid) Labels() []string {
	out := make([]string, 0, g.Rows*g.SeatsPerRow)
	for r := 0; r < g.Rows; r++ {
		for n := 1; n <= g.SeatsPerRow; n++ {
			out = append(out, Seat{Row: 'A' + byte(r), Number: n}.Label())
		}
	}
	return out
}

// Availability partitions the full grid into available and unavailable
// labels given the seats currently booked in the ledger.  A seat is
// unavailable when it is blocked, booked, or both; blocked and booked
// sets are combined as a union so each label appears exactly once.
// Unknown labels in booked (stale rows for seats no longer in the
// grid) are ignored.  Both result slices follow row-major grid order.
func (g Grid) Availability(booked []string) (available, unavailable []string) {
	taken := make(map[string]struct{}, len(booked))
	for _, label := range booked {
		taken[label] = struct{}{}
	}
	available = make([]string, 0, g.Rows*g.SeatsPerRow)
	unavailable = make([]string, 0, g.BlockedRows*g.SeatsPerRow+len(booked))
	for r := 0; r < g.Rows; r++ {
		for n := 1; n <= g.SeatsPerRow; n++ {
			s := Seat{Row: 'A' + byte(r), Number: n}
			label := s.Label()
			if g.IsBlocked(s) {
				unavailable = append(unavailable, label)
				continue
			}
			if _, ok := taken[label]; ok {
				unavailable = append(unavailable, label)
				continue
			}
			available = append(available, label)
		}
	}
	return available, unavailable
}
