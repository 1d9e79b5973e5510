package auditlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger(t *testing.T) *Logger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookings-export.csv")
	return New(path, "Rupaay Fest", "January 7, 2026", "Auditorium, Gitam University BLR")
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	return rows
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	l := testLogger(t)
	e := Entry{
		Reference: "RUPAAYFEST0001",
		Email:     "asha@campus.edu",
		Status:    "confirmed",
		CreatedAt: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		Students:  []StudentRow{{Name: "Asha", RegistrationNo: "REG42", SeatLabel: "C1"}},
	}
	if err := l.Append(e); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := l.Append(e); err != nil {
		t.Fatalf("second append: %v", err)
	}

	rows := readAll(t, l.Path())
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "Booking Reference" || len(rows[0]) != 12 {
		t.Fatalf("bad header: %v", rows[0])
	}
	if rows[1][0] != "RUPAAYFEST0001" || rows[1][6] != "C1" {
		t.Fatalf("bad data row: %v", rows[1])
	}
	if rows[1][3] != "2026-01-02T10:00:00Z" {
		t.Fatalf("timestamp column = %q", rows[1][3])
	}
	if rows[1][10] != "N/A" || rows[1][11] != "0" {
		t.Fatalf("payment columns = %q %q", rows[1][10], rows[1][11])
	}
}

func TestAppendOneRowPerStudent(t *testing.T) {
	l := testLogger(t)
	e := Entry{
		Reference: "RUPAAYFEST0002",
		Email:     "group@campus.edu",
		Status:    "confirmed",
		CreatedAt: time.Now(),
		Students: []StudentRow{
			{Name: "One", SeatLabel: "C1"},
			{Name: "Two", SeatLabel: "C2"},
			{Name: "Three", SeatLabel: "C3"},
		},
		PaymentID:     "pay_123",
		PaymentAmount: 250,
	}
	if err := l.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows := readAll(t, l.Path())
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	for i, want := range []string{"C1", "C2", "C3"} {
		if rows[i+1][6] != want {
			t.Errorf("row %d seat = %q, want %q", i+1, rows[i+1][6], want)
		}
		if rows[i+1][10] != "pay_123" || rows[i+1][11] != "250" {
			t.Errorf("row %d payment columns = %v", i+1, rows[i+1][10:])
		}
	}
}

// Fields containing commas, quotes or newlines must round-trip through
// the CSV encoding.
func TestAppendQuotesAwkwardFields(t *testing.T) {
	l := testLogger(t)
	name := `O'Brien, "Raj"` + "\nJr"
	e := Entry{
		Reference: "RUPAAYFEST0003",
		Email:     "raj@campus.edu",
		Status:    "confirmed",
		CreatedAt: time.Now(),
		Students:  []StudentRow{{Name: name, SeatLabel: "D5"}},
	}
	if err := l.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows := readAll(t, l.Path())
	if rows[1][4] != name {
		t.Fatalf("name did not round-trip: %q", rows[1][4])
	}
	raw, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if !strings.Contains(string(raw), `""Raj""`) {
		t.Fatalf("internal quotes not doubled in raw file:\n%s", raw)
	}
}

func TestAppendConcurrent(t *testing.T) {
	l := testLogger(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e := Entry{
				Reference: "RUPAAYFEST0100",
				Email:     "c@campus.edu",
				Status:    "confirmed",
				CreatedAt: time.Now(),
				Students:  []StudentRow{{Name: "C", SeatLabel: "E1"}},
			}
			if err := l.Append(e); err != nil {
				t.Errorf("append %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()
	rows := readAll(t, l.Path())
	if len(rows) != 21 {
		t.Fatalf("got %d rows, want header + 20", len(rows))
	}
	for _, row := range rows {
		if len(row) != 12 {
			t.Fatalf("torn row with %d fields: %v", len(row), row)
		}
	}
}
