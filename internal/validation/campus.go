package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var studentNumberRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{3,31}$`)

// Required fails when value is blank after trimming.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// MaxLength fails when value has more than max characters.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s too long (max %d characters)", field, max)
	}
	return nil
}

// RequiredMax combines Required and MaxLength.
func RequiredMax(field, value string, max int) error {
	if err := Required(field, value); err != nil {
		return err
	}
	return MaxLength(field, value, max)
}

// NormalizeStudentNumber upper-cases and trims a student number.
func NormalizeStudentNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateStudentNumber checks the institutional student number format:
// 4 to 32 upper-case letters, digits or hyphens, not starting with a hyphen.
func ValidateStudentNumber(s string) error {
	if !studentNumberRegex.MatchString(s) {
		return fmt.Errorf("student number must be 4-32 letters, digits or hyphens")
	}
	return nil
}

// ValidateYearOfStudy accepts 0 (unset) through 10.
func ValidateYearOfStudy(year int) error {
	if year < 0 || year > 10 {
		return fmt.Errorf("year of study must be between 1 and 10")
	}
	return nil
}

// OneOf fails when value is not among allowed.
func OneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of: %s", field, strings.Join(allowed, ", "))
}
