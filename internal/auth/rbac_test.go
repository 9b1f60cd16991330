package auth

import (
	"testing"

	"campusconnect/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role   models.Role
		action Action
		want   bool
	}{
		{models.RoleStudent, ActionReadNotices, true},
		{models.RoleStudent, ActionManageNotices, false},
		{models.RoleStudent, ActionViewAttendees, false},
		{models.RoleFaculty, ActionManageNotices, true},
		{models.RoleFaculty, ActionManageRoles, false},
		{models.RoleAdmin, ActionManageRoles, true},
		{models.RoleAdmin, ActionSendMessages, true},
		{"ghost", ActionReadNotices, true},
		{"ghost", ActionManageEvents, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Can(tt.role, tt.action), "%s %s", tt.role, tt.action)
	}
}

func TestPermissionsAreNested(t *testing.T) {
	for _, a := range Permissions(models.RoleStudent) {
		assert.True(t, Can(models.RoleFaculty, a), a)
	}
	for _, a := range Permissions(models.RoleFaculty) {
		assert.True(t, Can(models.RoleAdmin, a), a)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, models.RoleFaculty, Normalize(" Faculty "))
	assert.Equal(t, models.RoleAdmin, Normalize("ADMIN"))
	assert.Equal(t, models.RoleStudent, Normalize("superuser"))
	assert.Equal(t, models.RoleStudent, Normalize(""))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Correct-Horse-42!")
	assert.NoError(t, err)
	assert.True(t, CheckPassword(hash, "Correct-Horse-42!"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
