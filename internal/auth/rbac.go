package auth

import (
	"slices"
	"strings"

	"campusconnect/internal/models"
)

// Action is a permission checked against a role.
type Action string

const (
	ActionReadNotices      Action = "notices:read"
	ActionManageNotices    Action = "notices:manage"
	ActionViewExpired      Action = "notices:view_expired"
	ActionRegisterEvents   Action = "events:register"
	ActionManageEvents     Action = "events:manage"
	ActionViewAttendees    Action = "events:attendees"
	ActionPostForum        Action = "forum:post"
	ActionModerateForum    Action = "forum:moderate"
	ActionSendMessages     Action = "messages:send"
	ActionViewStudents     Action = "students:read"
	ActionManageStudents   Action = "students:manage"
	ActionManageRoles      Action = "roles:manage"
	ActionViewFeatureFlags Action = "flags:read"
)

var studentActions = []Action{
	ActionReadNotices,
	ActionRegisterEvents,
	ActionPostForum,
	ActionSendMessages,
}

var facultyActions = append(slices.Clone(studentActions),
	ActionManageNotices,
	ActionViewExpired,
	ActionManageEvents,
	ActionViewAttendees,
	ActionViewStudents,
	ActionManageStudents,
)

var adminActions = append(slices.Clone(facultyActions),
	ActionModerateForum,
	ActionManageRoles,
	ActionViewFeatureFlags,
)

// Permissions lists the actions granted to role.
func Permissions(role models.Role) []Action {
	switch role {
	case models.RoleAdmin:
		return slices.Clone(adminActions)
	case models.RoleFaculty:
		return slices.Clone(facultyActions)
	default:
		return slices.Clone(studentActions)
	}
}

// Can reports whether role may perform action.
func Can(role models.Role, action Action) bool {
	return slices.Contains(Permissions(role), action)
}

// Normalize maps free-form role input to a known role, defaulting to student.
func Normalize(role string) models.Role {
	r := models.Role(strings.ToLower(strings.TrimSpace(role)))
	if r.Valid() {
		return r
	}
	return models.RoleStudent
}
