package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MindLooped/rupaay-fest/internal/booking"
	"github.com/MindLooped/rupaay-fest/internal/model"
	"github.com/MindLooped/rupaay-fest/internal/repository"
)

// BookingService is the slice of the orchestrator the public handlers
// need.  Declared here so handler tests can substitute a fake.
type BookingService interface {
	SubmitBooking(ctx context.Context, in booking.SubmitInput) (*model.Booking, error)
	VerifyEmail(ctx context.Context, email, code string) (*model.Booking, error)
	ResendTicket(ctx context.Context, ref string) (*model.Booking, error)
	GetBooking(ctx context.Context, ref string) (*model.Booking, error)
	AvailableSeats(ctx context.Context) (*booking.Availability, error)
}

// BookingHandler serves the public booking endpoints.  Authentication
// is not required; abuse is curbed by the rate limiter registered in
// front of these routes.
type BookingHandler struct {
	Svc BookingService
}

// NewBookingHandler constructs a BookingHandler.  The service must be
// non-nil.
func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc}
}

// GetAvailableSeats handles GET /v1/bookings/available-seats.  The
// partition is recomputed from the ledger on every request.
func (h *BookingHandler) GetAvailableSeats(c echo.Context) error {
	av, err := h.Svc.AvailableSeats(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"availableSeats": av.AvailableSeats,
		"bookedSeats":    av.BookedSeats,
	})
}

// BookSeat handles POST /v1/bookings/book-seat.  On success it returns
// 201 with the created booking; conflicts over the seat or the email
// come back as 400 with a message the frontend shows verbatim.
func (h *BookingHandler) BookSeat(c echo.Context) error {
	var in booking.SubmitInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	b, err := h.Svc.SubmitBooking(c.Request().Context(), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "booking": b})
}

// GetBooking handles GET /v1/bookings/:reference.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	ref := strings.TrimSpace(c.Param("reference"))
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "reference is required"})
	}
	b, err := h.Svc.GetBooking(c.Request().Context(), ref)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}

// VerifyEmail handles POST /v1/bookings/verify-email.  A correct code
// confirms the booking and triggers ticket delivery.
func (h *BookingHandler) VerifyEmail(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "email and code are required"})
	}
	b, err := h.Svc.VerifyEmail(c.Request().Context(), body.Email, body.Code)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}

// ResendTicket handles POST /v1/bookings/resend-ticket.  Only
// confirmed bookings qualify; the resend does not mutate the booking.
func (h *BookingHandler) ResendTicket(c echo.Context) error {
	var body struct {
		Reference string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	ref := strings.TrimSpace(body.Reference)
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "reference is required"})
	}
	b, err := h.Svc.ResendTicket(c.Request().Context(), ref)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}

// fail maps service errors onto the response envelope.  Client faults
// keep their message; unexpected errors are hidden behind a generic
// 500 so internals never leak.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrValidation),
		errors.Is(err, repository.ErrSeatBlocked),
		errors.Is(err, repository.ErrSeatTaken),
		errors.Is(err, repository.ErrDuplicateBooking),
		errors.Is(err, repository.ErrInvalidState),
		errors.Is(err, repository.ErrVerification):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "booking not found"})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal server error"})
	}
}
