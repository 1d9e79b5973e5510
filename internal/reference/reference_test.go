package reference

import (
	"regexp"
	"strings"
	"testing"
)

func TestSequentialFormat(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{1, "RUPAAYFEST0001"},
		{42, "RUPAAYFEST0042"},
		{999, "RUPAAYFEST0999"},
		{9999, "RUPAAYFEST9999"},
		{10000, "RUPAAYFEST10000"},
		{123456, "RUPAAYFEST123456"},
	}
	for _, tc := range cases {
		if got := Sequential("RUPAAYFEST", tc.n); got != tc.want {
			t.Errorf("Sequential(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestSequentialMonotonic(t *testing.T) {
	prev := Sequential("EVT", 0)
	for n := 1; n < 200; n++ {
		cur := Sequential("EVT", n)
		if cur == prev {
			t.Fatalf("Sequential repeated %q at n=%d", cur, n)
		}
		// Same width implies lexical order matches numeric order.
		if len(cur) == len(prev) && cur < prev {
			t.Fatalf("Sequential not increasing: %q after %q", cur, prev)
		}
		prev = cur
	}
}

func TestRandom(t *testing.T) {
	pattern := regexp.MustCompile(`^BK[A-Z0-9]{6}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		ref, err := Random("BK", RandomLength)
		if err != nil {
			t.Fatalf("Random: %v", err)
		}
		if !pattern.MatchString(ref) {
			t.Fatalf("Random produced %q, want match of %v", ref, pattern)
		}
		seen[ref] = struct{}{}
	}
	// 500 draws over ~2e9 possibilities should not all collapse; a tiny
	// number of repeats would still pass, total collapse would not.
	if len(seen) < 490 {
		t.Fatalf("Random produced only %d distinct values out of 500", len(seen))
	}
}

func TestRandomDefaultsLength(t *testing.T) {
	ref, err := Random("BK", 0)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if len(ref) != len("BK")+RandomLength {
		t.Fatalf("Random with length 0 returned %q, want default suffix length %d", ref, RandomLength)
	}
}

func TestVerificationCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := VerificationCode()
		if err != nil {
			t.Fatalf("VerificationCode: %v", err)
		}
		if len(code) != 6 || strings.HasPrefix(code, "0") {
			t.Fatalf("VerificationCode returned %q, want 6 digits in 100000..999999", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("VerificationCode returned non-digit %q", code)
			}
		}
	}
}
