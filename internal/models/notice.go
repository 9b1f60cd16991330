package models

import (
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Notice categories.
const (
	NoticeGeneral  = "general"
	NoticeAcademic = "academic"
	NoticeExam     = "exam"
	NoticeEvent    = "event"
	NoticeUrgent   = "urgent"
)

// Notice priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// NoticeCategories lists the accepted notice categories.
var NoticeCategories = []string{NoticeGeneral, NoticeAcademic, NoticeExam, NoticeEvent, NoticeUrgent}

// NoticePriorities lists the accepted notice priorities.
var NoticePriorities = []string{PriorityLow, PriorityNormal, PriorityHigh}

// Notice is an announcement visible to a set of roles.
type Notice struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"size:200;not null" json:"title"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Category      string         `gorm:"size:32;not null;default:general;index" json:"category"`
	Priority      string         `gorm:"size:16;not null;default:normal" json:"priority"`
	Audience      string         `gorm:"size:64" json:"audience"`
	AuthorID      uint           `gorm:"not null;index" json:"author_id"`
	Author        *Profile       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	AttachmentKey string         `json:"attachment_key,omitempty"`
	AttachmentURL string         `gorm:"-" json:"attachment_url,omitempty"`
	Pinned        bool           `gorm:"not null;default:false" json:"pinned"`
	PublishedAt   time.Time      `gorm:"not null;index" json:"published_at"`
	ExpiresAt     *time.Time     `gorm:"index;check:chk_notices_expiry,expires_at IS NULL OR expires_at > published_at" json:"expires_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// AudienceRoles parses the comma-separated audience column.
// An empty result means the notice is visible to everyone.
func (n *Notice) AudienceRoles() []Role {
	var roles []Role
	for _, part := range strings.Split(n.Audience, ",") {
		if r := Role(strings.TrimSpace(part)); r.Valid() {
			roles = append(roles, r)
		}
	}
	return roles
}

// VisibleTo reports whether a member with role may read the notice.
// Admins see everything.
func (n *Notice) VisibleTo(role Role) bool {
	if role == RoleAdmin {
		return true
	}
	roles := n.AudienceRoles()
	return len(roles) == 0 || slices.Contains(roles, role)
}

// Expired reports whether the notice has passed its expiry at now.
func (n *Notice) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// JoinAudience renders roles into the stored column format, dropping
// unknown and duplicate entries.
func JoinAudience(roles []Role) string {
	seen := make(map[Role]bool, len(roles))
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() || seen[r] {
			continue
		}
		seen[r] = true
		parts = append(parts, string(r))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}
