package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/validation"
)

const (
	maxFullNameLen   = 100
	maxBioLen        = 500
	maxDepartmentLen = 100
)

// ProfileService manages member profiles and the staff-facing student directory.
type ProfileService struct {
	profiles repository.ProfileRepository
}

// UpdateProfileInput carries optional profile changes; nil fields are left unchanged.
type UpdateProfileInput struct {
	FullName   *string
	Bio        *string
	Department *string
}

// StudentInput is the staff payload for creating or updating a student.
type StudentInput struct {
	Email         string
	FullName      *string
	Department    *string
	StudentNumber *string
	YearOfStudy   *int
}

func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

func (s *ProfileService) ListProfiles(ctx context.Context, filter repository.ProfileFilter) ([]models.Profile, int64, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, models.NewValidationError("Invalid role filter")
	}
	return s.profiles.List(ctx, filter)
}

func (s *ProfileService) UpdateMe(ctx context.Context, userID uint, in UpdateProfileInput) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := applyProfileChanges(profile, in); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func applyProfileChanges(profile *models.Profile, in UpdateProfileInput) error {
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if err := validation.RequiredMax("Full name", name, maxFullNameLen); err != nil {
			return invalid(err)
		}
		profile.FullName = name
	}
	if in.Bio != nil {
		if err := validation.MaxLength("Bio", *in.Bio, maxBioLen); err != nil {
			return invalid(err)
		}
		profile.Bio = *in.Bio
	}
	if in.Department != nil {
		dept := strings.TrimSpace(*in.Department)
		if err := validation.MaxLength("Department", dept, maxDepartmentLen); err != nil {
			return invalid(err)
		}
		profile.Department = dept
	}
	return nil
}

// SetRole changes targetID's role. Admins cannot demote themselves.
func (s *ProfileService) SetRole(ctx context.Context, actor Actor, targetID uint, role models.Role) (*models.Profile, error) {
	if !actor.Can(auth.ActionManageRoles) {
		return nil, models.NewForbiddenError("Only administrators can change roles")
	}
	if !role.Valid() {
		return nil, models.NewValidationError("Role must be one of: student, faculty, admin")
	}
	if actor.ID == targetID && role != models.RoleAdmin {
		return nil, models.NewValidationError("You cannot remove your own admin role")
	}

	profile, err := s.profiles.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	profile.Role = role
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ListStudents lists student profiles for staff.
func (s *ProfileService) ListStudents(ctx context.Context, actor Actor, filter repository.ProfileFilter) ([]models.Profile, int64, error) {
	if !actor.Can(auth.ActionViewStudents) {
		return nil, 0, models.NewForbiddenError("Only staff can view the student directory")
	}
	filter.Role = models.RoleStudent
	return s.profiles.List(ctx, filter)
}

// CreateStudent registers a student on their behalf and returns the one-time
// temporary password.
func (s *ProfileService) CreateStudent(ctx context.Context, actor Actor, in StudentInput) (*models.Profile, string, error) {
	if !actor.Can(auth.ActionManageStudents) {
		return nil, "", models.NewForbiddenError("Only staff can create students")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, "", invalid(err)
	}
	if in.FullName == nil {
		return nil, "", models.NewValidationError("Full name is required")
	}

	profile := &models.Profile{Email: email, Role: models.RoleStudent}
	if err := applyStudentChanges(profile, in); err != nil {
		return nil, "", err
	}

	existing, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", models.NewConflictError("An account with this email already exists")
	}

	temp, err := temporaryPassword()
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	hash, err := auth.HashPassword(temp)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	profile.Password = hash

	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, "", err
	}
	return profile, temp, nil
}

func (s *ProfileService) GetStudent(ctx context.Context, actor Actor, id uint) (*models.Profile, error) {
	if !actor.Can(auth.ActionViewStudents) {
		return nil, models.NewForbiddenError("Only staff can view the student directory")
	}
	return s.studentByID(ctx, id)
}

func (s *ProfileService) UpdateStudent(ctx context.Context, actor Actor, id uint, in StudentInput) (*models.Profile, error) {
	if !actor.Can(auth.ActionManageStudents) {
		return nil, models.NewForbiddenError("Only staff can update students")
	}
	profile, err := s.studentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyStudentChanges(profile, in); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ProfileService) DeleteStudent(ctx context.Context, actor Actor, id uint) error {
	if !actor.Can(auth.ActionManageStudents) {
		return models.NewForbiddenError("Only staff can delete students")
	}
	if _, err := s.studentByID(ctx, id); err != nil {
		return err
	}
	return s.profiles.Delete(ctx, id)
}

func (s *ProfileService) studentByID(ctx context.Context, id uint) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.Role != models.RoleStudent {
		return nil, models.NewNotFoundError("Student", id)
	}
	return profile, nil
}

func applyStudentChanges(profile *models.Profile, in StudentInput) error {
	if err := applyProfileChanges(profile, UpdateProfileInput{FullName: in.FullName, Department: in.Department}); err != nil {
		return err
	}
	if in.StudentNumber != nil {
		number := validation.NormalizeStudentNumber(*in.StudentNumber)
		if number == "" {
			profile.StudentNumber = nil
		} else {
			if err := validation.ValidateStudentNumber(number); err != nil {
				return invalid(err)
			}
			profile.StudentNumber = &number
		}
	}
	if in.YearOfStudy != nil {
		if err := validation.ValidateYearOfStudy(*in.YearOfStudy); err != nil {
			return invalid(err)
		}
		profile.YearOfStudy = *in.YearOfStudy
	}
	return nil
}

const (
	tempUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	tempLower   = "abcdefghijkmnopqrstuvwxyz"
	tempDigits  = "23456789"
	tempSpecial = "!@#$%*?"
)

// temporaryPassword returns a random 16 character password that satisfies
// validation.ValidatePassword.
func temporaryPassword() (string, error) {
	all := tempUpper + tempLower + tempDigits + tempSpecial
	sets := []string{tempUpper, tempLower, tempDigits, tempSpecial}

	out := make([]byte, 16)
	for i := range out {
		set := all
		if i < len(sets) {
			set = sets[i]
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
		if err != nil {
			return "", err
		}
		out[i] = set[n.Int64()]
	}
	// Shuffle so the guaranteed classes are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}
