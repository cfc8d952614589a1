package models

import "strings"

const phoneKeyDigits = 10

// NormalizePhone reduces a phone number to its matching key: the last ten digits.
// Country codes, spaces, dashes and brackets are ignored. Shorter numbers keep all their digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > phoneKeyDigits {
		return digits[len(digits)-phoneKeyDigits:]
	}
	return digits
}

// SamePhone reports whether two numbers resolve to the same key.
func SamePhone(a, b string) bool {
	ka := NormalizePhone(a)
	return ka != "" && ka == NormalizePhone(b)
}

// IsDialable requires a full ten-digit key.
func IsDialable(raw string) bool {
	return len(NormalizePhone(raw)) == phoneKeyDigits
}
