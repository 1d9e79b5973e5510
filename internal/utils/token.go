package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminToken represents a signed HS256 JWT granting access to the admin
// endpoints, along with its UTC expiration time.  The token carries a fixed
// "admin" role claim; there are no per-user accounts.
type AdminToken struct {
	Token string
	Exp   time.Time
}

// NewAdminToken builds and signs an HS256 JWT for the admin session.  The
// JWT includes the standard claims exp and iat plus a role claim, and is
// valid for ttlMin minutes.
func NewAdminToken(secret string, ttlMin int) (AdminToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"role": "admin",
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AdminToken{}, err
	}
	return AdminToken{Token: signed, Exp: exp}, nil
}

// ParseAdminToken validates a signed admin JWT and returns an error when the
// token is malformed, expired, signed with the wrong method, or missing the
// admin role claim.
func ParseAdminToken(secret, token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return errors.New("invalid token")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return errors.New("missing admin role")
	}
	return nil
}
