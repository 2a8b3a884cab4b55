package service

import (
	"fmt"
	"strings"

	"github.com/boddenberg/profile-bff-go/internal/domain"

	"github.com/nyaruka/phonenumbers"
)

const phoneRegion = "BR"

// normalizeCPF strips formatting from a CPF taken from a URL or body.
func normalizeCPF(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) != 11 {
		return "", &domain.ErrValidation{Field: "cpf", Message: "CPF deve ter 11 dígitos"}
	}
	return digits, nil
}

// MaskCPF renders 11 digits as 000.000.000-00; anything else is returned as is.
func MaskCPF(cpf string) string {
	if len(cpf) != 11 {
		return cpf
	}
	return fmt.Sprintf("%s.%s.%s-%s", cpf[:3], cpf[3:6], cpf[6:9], cpf[9:])
}

// FormatPhone renders a Brazilian phone in national format. Numbers that
// do not parse or validate are returned trimmed.
func FormatPhone(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.NATIONAL)
}

func profileRow(p domain.ProfileRecord) domain.ProfileRow {
	return domain.ProfileRow{
		ProfileRecord:  p,
		MaskedCPF:      MaskCPF(p.CPF),
		FormattedPhone: FormatPhone(p.Phone),
	}
}
