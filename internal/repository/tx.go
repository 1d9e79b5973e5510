package repository

import (
	"context"

	"github.com/MindLooped/rupaay-fest/internal/model"
)

// CreateBooking wraps CreateTx in its own transaction so callers that
// do not manage transactions themselves get the same atomicity: the
// booking and its student rows are committed together or not at all.
func (r *BookingRepo) CreateBooking(ctx context.Context, rec *BookingRecord, students []StudentRecord) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	booking, err := r.CreateTx(ctx, tx, rec, students)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return booking, nil
}
