// Package form implements the record-form engine behind the profile and
// address screens: CEP masking, the lookup trigger, the per-entry field
// lock, the address accumulator and the submission gate.
//
// Nothing in this package performs I/O. Lookups are requested by returning
// a LookupRequest; the caller runs it and feeds the outcome back through
// ApplyLookup or FailLookup.
package form

import "strings"

const postalCodeDigits = 8

// NormalizePostalCode masks raw input into the NNNNN-NNN display form.
// Non-digits are dropped, at most 8 digits are kept and the hyphen appears
// once a 6th digit exists.
func NormalizePostalCode(raw string) string {
	digits := PostalCodeDigits(raw)
	if len(digits) > postalCodeDigits {
		digits = digits[:postalCodeDigits]
	}
	if len(digits) <= 5 {
		return digits
	}
	return digits[:5] + "-" + digits[5:]
}

// PostalCodeDigits returns only the ASCII digits of s.
func PostalCodeDigits(s string) string {
	return digitsOnly(s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// IsCompletePostalCode reports whether s carries exactly 8 digits.
func IsCompletePostalCode(s string) bool {
	return len(PostalCodeDigits(s)) == postalCodeDigits
}
