package usecases

import (
	"fmt"
	"strings"
	"unicode"
)

// Shortest full international number accepted as a chat address.
const minJIDDigits = 8

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// NormalizeJIDUser returns the digits of a WhatsApp JID user part. JIDs
// already carry the country code, so nothing is prefixed.
func NormalizeJIDUser(user string) (string, error) {
	phone := digitsOnly(user)
	if len(phone) < minJIDDigits {
		return "", fmt.Errorf("invalid phone length: %d", len(phone))
	}
	return phone, nil
}

// NormalizePhone is for hand-typed numbers: it keeps digits only and
// prefixes the Brazilian country code when the number comes as DDD + local number.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty phone")
	}
	phone := digitsOnly(raw)
	if len(phone) == 10 || len(phone) == 11 {
		phone = "55" + phone
	}
	if len(phone) < 12 {
		return "", fmt.Errorf("invalid phone length: %d", len(phone))
	}
	return phone, nil
}
