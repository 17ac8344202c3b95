// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "NL"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// IsDialable reports whether the input parses to a valid number that a
// messaging gateway can deliver to.
func IsDialable(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}
	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}

// Digits returns the E.164 form without the leading plus, as messaging
// gateways expect it.
func Digits(input string) string {
	return strings.TrimPrefix(NormalizeE164(input), "+")
}
