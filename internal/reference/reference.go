// Package reference generates booking reference strings.  The primary
// form is a fixed prefix followed by a zero-padded ordinal taken from
// the current booking count, which keeps references human-readable and
// monotonic under sequential use.  Counting and formatting are not
// atomic, so the ledger enforces a unique constraint on the reference
// column as the authoritative guard; callers retry with a fresh count
// and may fall back to the random form on repeated collisions.
package reference

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// randomAlphabet is the symbol set for random references.  Six symbols
// over 36 characters give roughly two billion combinations, enough to
// make a collision with an existing reference negligible.
const randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomLength is the default suffix length for Random.
const RandomLength = 6

// Sequential formats a reference from the given ordinal, e.g.
// Sequential("RUPAAYFEST", 7) returns "RUPAAYFEST0007".  The numeric
// part is padded to at least four digits and grows as needed.
func Sequential(prefix string, n int) string {
	return fmt.Sprintf("%s%04d", prefix, n)
}

// Random produces a reference with a random alphanumeric suffix of the
// given length, e.g. "RUPAAYFEST7X9M2A".  It draws from crypto/rand so
// concurrent calls cannot repeat a pseudo-random stream.
func Random(prefix string, length int) (string, error) {
	if length < 1 {
		length = RandomLength
	}
	buf := make([]byte, length)
	max := big.NewInt(int64(len(randomAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reference: random draw: %w", err)
		}
		buf[i] = randomAlphabet[idx.Int64()]
	}
	return prefix + string(buf), nil
}

// VerificationCode returns a 6-digit numeric code in 100000..999999 for
// the email verification flow.
func VerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("reference: random draw: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
