package models

import (
	"time"

	"gorm.io/gorm"
)

// Attendee statuses.
const (
	AttendeeRegistered = "registered"
	AttendeeAttended   = "attended"
	AttendeeCancelled  = "cancelled"
)

// Event is a scheduled campus event.
type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:200" json:"location"`
	Category    string    `gorm:"size:32;index" json:"category"`
	StartsAt    time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null;check:chk_events_window,ends_at > starts_at" json:"ends_at"`
	// Capacity of zero means unlimited.
	Capacity    int      `gorm:"not null;default:0;check:chk_events_capacity,capacity >= 0" json:"capacity"`
	OrganizerID uint     `gorm:"not null;index" json:"organizer_id"`
	Organizer   *Profile `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
	// AttendeeCount is not persisted; computed at query time
	AttendeeCount int `gorm:"->" json:"attendee_count"`
	// Attending reports whether the requesting user is registered (computed)
	Attending bool           `gorm:"->" json:"attending"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Full reports whether no more registrations fit.
func (e *Event) Full() bool {
	return e.Capacity > 0 && e.AttendeeCount >= e.Capacity
}

// EventAttendee links a profile to an event.
type EventAttendee struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EventID     uint       `gorm:"not null;uniqueIndex:idx_event_attendee" json:"event_id"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_event_attendee;index" json:"user_id"`
	Profile     *Profile   `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	Status      string     `gorm:"size:16;not null;default:registered" json:"status"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
