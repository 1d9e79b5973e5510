package router

import (
	"github.com/labstack/echo/v4"

	"github.com/MindLooped/rupaay-fest/internal/handler"
	"github.com/MindLooped/rupaay-fest/internal/middleware"
)

// RegisterRoutes registers routes that carry no middleware.  Currently
// that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the public booking endpoints under
// /v1/bookings.  The rate limiter wraps the whole group so a single
// client cannot hammer availability polling or booking submission.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings")
	if limiter != nil {
		g.Use(limiter)
	}
	g.GET("/available-seats", b.GetAvailableSeats)
	g.POST("/book-seat", b.BookSeat)
	g.POST("/verify-email", b.VerifyEmail)
	g.POST("/resend-ticket", b.ResendTicket)
	// Registered last so the static paths above win over the wildcard.
	g.GET("/:reference", b.GetBooking)

	pay := e.Group("/v1/payments")
	if limiter != nil {
		pay.Use(limiter)
	}
	pay.POST("/create-order", p.CreateOrder)
	pay.POST("/verify", p.VerifyPayment)
}

// RegisterAdmin registers the admin endpoints under /v1/admin.  Login
// stays outside the auth middleware; everything else requires either
// the shared password or a JWT from Login as a bearer credential.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, password, jwtSecret string) {
	e.POST("/v1/admin/login", a.Login)

	g := e.Group("/v1/admin")
	g.Use(middleware.AdminAuth(password, jwtSecret))
	g.GET("/bookings", a.ListBookings)
	g.GET("/stats", a.Stats)
	g.GET("/export", a.Export)
	g.DELETE("/bookings/:reference", a.PurgeBooking)
}
