package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusconnect/internal/cache"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"

	"gorm.io/gorm"
)

// ProfileFilter narrows profile listings.
type ProfileFilter struct {
	Role       models.Role
	Department string
	Query      string
	Limit      int
	Offset     int
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ProfileFilter) ([]models.Profile, int64, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	TouchLastSeen(ctx context.Context, id uint, at time.Time) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(id), &profile, cache.ProfileTTL, func() error {
		ctx, span := observability.StartRepositorySpan(ctx, "GetByID", "profiles")
		defer span.End()
		if err := readDB(r.db).WithContext(ctx).First(&profile, id).Error; err != nil {
			return notFoundOr(err, "Profile", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByEmail returns nil, nil when no profile uses email.
func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	defer observability.TrackQuery("create", "profiles")()
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A profile with this email or student number already exists")
		}
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.StudentCountKey)
	return nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	// The password hash is never serialized, so a cached profile must not overwrite it.
	err := r.db.WithContext(ctx).Model(profile).
		Select("full_name", "role", "department", "student_number", "year_of_study", "bio", "avatar_url", "updated_at").
		Updates(profile).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A profile with this email or student number already exists")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateProfile(ctx, profile.ID)
	return nil
}

func (r *profileRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Profile{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", id)
	}
	cache.InvalidateProfile(ctx, id)
	cache.Invalidate(ctx, cache.StudentCountKey)
	return nil
}

func (r *profileRepository) List(ctx context.Context, filter ProfileFilter) ([]models.Profile, int64, error) {
	defer observability.TrackQuery("list", "profiles")()

	q := readDB(r.db).WithContext(ctx).Model(&models.Profile{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Department != "" {
		q = q.Where("LOWER(department) = ?", strings.ToLower(filter.Department))
	}
	if strings.TrimSpace(filter.Query) != "" {
		like := likePattern(filter.Query)
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(COALESCE(student_number, '')) LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var profiles []models.Profile
	if err := q.Order("full_name ASC, id ASC").
		Limit(clampLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&profiles).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return profiles, total, nil
}

func (r *profileRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var count int64
	load := func() error {
		return readDB(r.db).WithContext(ctx).Model(&models.Profile{}).Where("role = ?", role).Count(&count).Error
	}
	var err error
	if role == models.RoleStudent {
		err = cache.Aside(ctx, cache.StudentCountKey, &count, cache.StatsTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *profileRepository) TouchLastSeen(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		UpdateColumn("last_seen_at", at).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *profileRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", id)
	}
	return nil
}
