// Package validation checks user input for the campus API.
package validation

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLen = 12
	maxPasswordLen = 128
	maxEmailLen    = 254
)

type passwordRule struct {
	need string
	ok   func(string) bool
}

func hasRune(pred func(rune) bool) func(string) bool {
	return func(s string) bool { return strings.IndexFunc(s, pred) >= 0 }
}

var passwordRules = []passwordRule{
	{"at least 12 characters", func(s string) bool { return utf8.RuneCountInString(s) >= minPasswordLen }},
	{"an uppercase letter", hasRune(unicode.IsUpper)},
	{"a lowercase letter", hasRune(unicode.IsLower)},
	{"a digit", hasRune(unicode.IsDigit)},
	{"a symbol such as !@#$%", hasRune(func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })},
}

// ValidatePassword reports every unmet rule in a single error so signup
// forms can show them together.
func ValidatePassword(password string) error {
	if len(password) > maxPasswordLen {
		return errors.New("password must not exceed 128 characters")
	}
	var missing []string
	for _, r := range passwordRules {
		if !r.ok(password) {
			missing = append(missing, r.need)
		}
	}
	if len(missing) > 0 {
		return errors.New("password needs " + strings.Join(missing, ", "))
	}
	return nil
}

// ValidatePasswordFor also rejects passwords built from the account's
// email name, e.g. "Jane.Doe2026!" for jane.doe@campus.edu.
func ValidatePasswordFor(password, email string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	for _, part := range strings.FieldsFunc(local, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		if len(part) >= 4 && strings.Contains(strings.ToLower(password), part) {
			return errors.New("password must not contain your email name")
		}
	}
	return nil
}

// ValidateEmail accepts a bare address with a dotted domain.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLen {
		return errors.New("email must not exceed 254 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return errors.New("invalid email format")
	}
	_, domain, _ := strings.Cut(email, "@")
	if !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return errors.New("invalid email format")
	}
	return nil
}
