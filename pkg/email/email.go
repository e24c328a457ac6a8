// Package email normalizes and validates account e-mail addresses.
package email

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "boxoffice/pkg/domain-errors"
)

const maxLength = 254

// Normalize trims and lower-cases an address. Accounts are keyed on the
// normalized form.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Validate checks that addr is a bare address (no display name) of sane length.
func Validate(addr string) error {
	if addr == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(addr) > maxLength {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || parsed.Name != "" {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return nil
}

// DisplayName derives a human name from the local part, e.g.
// "jane.doe@example.com" becomes "Jane Doe".
func DisplayName(addr string) string {
	localPart := addr
	if at := strings.IndexByte(addr, '@'); at >= 0 {
		localPart = addr[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
