package checkout

import (
	"fmt"
	"strings"
)

// NormalizePhone strips formatting and validates a Russian mobile number:
// exactly 11 digits starting with 7 or 8, stored in the 7-leading form.
// Only ASCII digits count; anything else is formatting.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) != 11 {
		return "", fmt.Errorf("телефон должен содержать 11 цифр")
	}
	switch digits[0] {
	case '7':
		return digits, nil
	case '8':
		return "7" + digits[1:], nil
	}
	return "", fmt.Errorf("телефон должен начинаться с 7 или 8")
}

// ValidateEmail accepts an empty email (the field is optional). A non-empty
// one needs an @ with non-empty local and domain parts and a dot in the domain.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("некорректный email")
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("некорректный email")
	}
	return nil
}
