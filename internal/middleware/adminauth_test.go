package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/MindLooped/rupaay-fest/internal/utils"
)

func callAdmin(t *testing.T, mw echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if err := h(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	return rec
}

func TestAdminAuth(t *testing.T) {
	const password = "letmein"
	const secret = "test-secret"
	mw := AdminAuth(password, secret)

	t.Run("missing header", func(t *testing.T) {
		rec := callAdmin(t, mw, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("shared password accepted", func(t *testing.T) {
		rec := callAdmin(t, mw, "Bearer letmein")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		rec := callAdmin(t, mw, "Bearer nope")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid jwt accepted", func(t *testing.T) {
		tok, err := utils.NewAdminToken(secret, 5)
		if err != nil {
			t.Fatalf("NewAdminToken: %v", err)
		}
		rec := callAdmin(t, mw, "Bearer "+tok.Token)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("jwt with wrong secret rejected", func(t *testing.T) {
		tok, err := utils.NewAdminToken("other-secret", 5)
		if err != nil {
			t.Fatalf("NewAdminToken: %v", err)
		}
		rec := callAdmin(t, mw, "Bearer "+tok.Token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}
