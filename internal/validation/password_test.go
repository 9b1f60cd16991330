package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "SecurePass12!@", false},
		{"Exactly Min Length", "Abcdefghij1!", false},
		{"Exactly Max Length", "A" + strings.Repeat("b", 125) + "1!", false},
		{"Too Short", "Small1!", true},
		{"Too Long", "A" + strings.Repeat("b", 126) + "1!", true},
		{"No Upper", "securepass12!", true},
		{"No Lower", "SECUREPASS12!", true},
		{"No Digit", "SecurePass!!", true},
		{"No Special", "SecurePass123", true},
		{"Digits And Special Only", "1234567890!@", true},
		{"Unicode Characters", "ÅngstromPass12!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStudentNumber(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		number  string
		wantErr bool
	}{
		{"Valid", "CS-2024-0017", false},
		{"Digits Only", "20240017", false},
		{"Too Short", "CS1", true},
		{"Lower Case", "cs-2024", true},
		{"Starts Dash", "-2024001", true},
		{"Illegal Chars", "CS 2024", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStudentNumber(tt.number)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLengthHelpers(t *testing.T) {
	t.Parallel()
	assert.Error(t, Required("title", "   "))
	assert.NoError(t, Required("title", "x"))
	assert.NoError(t, MaxLength("bio", strings.Repeat("é", 10), 10))
	assert.Error(t, MaxLength("bio", strings.Repeat("é", 11), 10))
	assert.EqualError(t, RequiredMax("title", strings.Repeat("a", 201), 200), "title too long (max 200 characters)")
	assert.Error(t, OneOf("priority", "urgent", []string{"low", "normal", "high"}))
	assert.Equal(t, "CS-1", NormalizeStudentNumber(" cs-1 "))
	assert.Error(t, ValidateYearOfStudy(11))
	assert.NoError(t, ValidateYearOfStudy(0))
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	// 254 chars total: 64 local + @ + 185 domain label + ".com" (4)
	emailAt254 := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Exactly 254 Characters", emailAt254, false},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
		{"Trailing Dot In Domain", "user@example.com.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword_ListsEveryMissingRule(t *testing.T) {
	t.Parallel()
	err := ValidatePassword("abc")
	assert.EqualError(t, err, "password needs at least 12 characters, an uppercase letter, a digit, a symbol such as !@#$%")
}

func TestValidatePasswordFor(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidatePasswordFor("Lecture-Hall-42", "jane.doe@campus.edu"))
	assert.EqualError(t, ValidatePasswordFor("JaneRules2026!", "jane.doe@campus.edu"), "password must not contain your email name")
	assert.NoError(t, ValidatePasswordFor("Doorstop-2026!", "al.do@campus.edu"), "short name parts are ignored")
	assert.Error(t, ValidatePasswordFor("weak", "x@campus.edu"))
}
