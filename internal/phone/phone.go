// Package phone canonicalizes free-form phone input into loose E.164 form.
package phone

import (
	"errors"
	"strings"
)

// ErrInvalid indicates the input cannot be canonicalized into a phone number.
var ErrInvalid = errors.New("invalid phone number")

const (
	localPrefix   = "0"
	countryPrefix = "60"
	minDigits     = 8
	maxDigits     = 15
)

// Normalize strips non-digits, rewrites a leading local "0" to the "60"
// country prefix and returns the number with a leading "+". Deterministic
// and idempotent: feeding a previous result back yields the same value.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrInvalid
	}

	if strings.HasPrefix(digits, localPrefix) {
		digits = countryPrefix + digits[len(localPrefix):]
	}

	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", ErrInvalid
	}

	return "+" + digits, nil
}
