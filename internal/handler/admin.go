package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MindLooped/rupaay-fest/internal/auditlog"
	"github.com/MindLooped/rupaay-fest/internal/booking"
	"github.com/MindLooped/rupaay-fest/internal/model"
	"github.com/MindLooped/rupaay-fest/internal/repository"
	"github.com/MindLooped/rupaay-fest/internal/utils"
)

// AdminService is the slice of the orchestrator the admin handlers
// need.
type AdminService interface {
	ListBookings(ctx context.Context, page, limit int, search string) (*repository.SearchPage, error)
	Stats(ctx context.Context) (*booking.AdminStats, error)
	ExportConfirmed(ctx context.Context) ([]model.Booking, error)
	PurgeBooking(ctx context.Context, ref string) error
}

// AdminHandler serves the admin dashboard endpoints.  All routes except
// Login sit behind the admin auth middleware.
type AdminHandler struct {
	Svc          AdminService
	Audit        *auditlog.Logger
	Password     string
	PasswordHash string
	JWTSecret    string
	TokenTTLMin  int
}

// Login handles POST /v1/admin/login.  It exchanges the shared admin
// password for a short-lived JWT so the dashboard does not have to
// resend the password on every request.  When ADMIN_PASSWORD_HASH is
// set it takes precedence over the plain password.
func (h *AdminHandler) Login(c echo.Context) error {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	ok := false
	if h.PasswordHash != "" {
		ok = utils.VerifyPassword(h.PasswordHash, body.Password)
	} else {
		ok = h.Password != "" && body.Password == h.Password
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid password"})
	}
	tok, err := utils.NewAdminToken(h.JWTSecret, h.TokenTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"token":      tok.Token,
		"expires_at": tok.Exp,
	})
}

// ListBookings handles GET /v1/admin/bookings with optional page,
// limit and search query parameters.
func (h *AdminHandler) ListBookings(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	search := strings.TrimSpace(c.QueryParam("search"))

	res, err := h.Svc.ListBookings(c.Request().Context(), page, limit, search)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"bookings": res.Bookings,
		"total":    res.Total,
		"page":     res.Page,
		"limit":    res.Limit,
	})
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	st, err := h.Svc.Stats(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "stats": st})
}

// Export handles GET /v1/admin/export.  It renders every confirmed
// booking as a CSV attachment using the same column layout as the
// running audit file.
func (h *AdminHandler) Export(c echo.Context) error {
	bookings, err := h.Svc.ExportConfirmed(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	entries := make([]auditlog.Entry, 0, len(bookings))
	for _, b := range bookings {
		e := auditlog.Entry{
			Reference: b.Reference,
			Email:     b.Email,
			Status:    b.Status,
			CreatedAt: b.CreatedAt,
		}
		for _, s := range b.Students {
			reg := ""
			if s.RegistrationNo != nil {
				reg = *s.RegistrationNo
			}
			e.Students = append(e.Students, auditlog.StudentRow{
				Name:           s.Name,
				RegistrationNo: reg,
				SeatLabel:      s.SeatLabel,
			})
		}
		entries = append(entries, e)
	}

	var buf bytes.Buffer
	if err := h.Audit.WriteReport(&buf, entries); err != nil {
		return fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="bookings.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

// PurgeBooking handles DELETE /v1/admin/bookings/:reference.  The
// booking and its student rows are removed and the seat becomes
// bookable again.
func (h *AdminHandler) PurgeBooking(c echo.Context) error {
	ref := strings.TrimSpace(c.Param("reference"))
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "reference is required"})
	}
	if err := h.Svc.PurgeBooking(c.Request().Context(), ref); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
