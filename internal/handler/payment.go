package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// PaymentHandler serves the payment stub endpoints.  The event is
// free of charge, so there is no gateway: create-order hands out a
// synthetic order that verify always accepts.  The endpoints keep the
// frontend's payment flow intact until a real gateway is wired in.
type PaymentHandler struct{}

// CreateOrder handles POST /v1/payments/create-order.  It returns a
// zero-amount order with a generated id.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var body struct {
		Reference string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if strings.TrimSpace(body.Reference) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "reference is required"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"order_id":   "order_" + uuid.NewString(),
		"amount":     0,
		"currency":   "INR",
		"created_at": time.Now().UTC(),
	})
}

// VerifyPayment handles POST /v1/payments/verify.  Zero-amount orders
// need no settlement, so any well-formed request succeeds.
func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	var body struct {
		OrderID   string `json:"order_id"`
		Reference string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if strings.TrimSpace(body.OrderID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "order_id is required"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"order_id":   body.OrderID,
		"payment_id": "pay_" + uuid.NewString(),
		"status":     "captured",
	})
}
