// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the campus role carried by every profile.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r can manage campus content.
func (r Role) IsStaff() bool {
	return r == RoleFaculty || r == RoleAdmin
}

// Profile is the identity record for a campus member.
type Profile struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	Password      string         `gorm:"not null" json:"-"`
	FullName      string         `gorm:"size:100" json:"full_name"`
	Role          Role           `gorm:"size:16;not null;default:student;index" json:"role"`
	Department    string         `gorm:"size:100;index" json:"department,omitempty"`
	StudentNumber *string        `gorm:"uniqueIndex" json:"student_number,omitempty"`
	YearOfStudy   int            `json:"year_of_study,omitempty"`
	Bio           string         `gorm:"type:text" json:"bio,omitempty"`
	AvatarURL     string         `json:"avatar_url,omitempty"`
	LastSeenAt    *time.Time     `json:"last_seen_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayName returns the full name, or the email local part when unset.
func (p *Profile) DisplayName() string {
	if strings.TrimSpace(p.FullName) != "" {
		return p.FullName
	}
	return emailLocalPart(p.Email)
}

// DefaultProfile is the minimal profile used when the stored profile cannot be
// loaded in time. It always carries the least-privileged role.
func DefaultProfile(userID uint, email string) *Profile {
	return &Profile{
		ID:       userID,
		Email:    email,
		FullName: emailLocalPart(email),
		Role:     RoleStudent,
	}
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
