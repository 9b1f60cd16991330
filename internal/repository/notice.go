package repository

import (
	"context"
	"strings"
	"time"

	"campusconnect/internal/cache"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"

	"gorm.io/gorm"
)

// NoticeFilter narrows notice listings to what a viewer may see.
type NoticeFilter struct {
	ViewerRole models.Role
	// IncludeExpired also returns expired and not yet published notices.
	IncludeExpired bool
	Category       string
	AuthorID       uint
	Query          string
	Now            time.Time
	Limit          int
	Offset         int
}

// NoticeRepository defines persistence operations for notices.
type NoticeRepository interface {
	Create(ctx context.Context, notice *models.Notice) error
	GetByID(ctx context.Context, id uint) (*models.Notice, error)
	List(ctx context.Context, filter NoticeFilter) ([]models.Notice, int64, error)
	Update(ctx context.Context, notice *models.Notice) error
	Delete(ctx context.Context, id uint) error
	CountActive(ctx context.Context, role models.Role, now time.Time) (int64, error)
}

type noticeRepository struct {
	db *gorm.DB
}

// NewNoticeRepository returns a new NoticeRepository implementation.
func NewNoticeRepository(db *gorm.DB) NoticeRepository {
	return &noticeRepository{db: db}
}

// visibleTo restricts q to notices whose audience includes role. Admins see all.
func visibleTo(q *gorm.DB, role models.Role) *gorm.DB {
	if role == models.RoleAdmin {
		return q
	}
	return q.Where("(notices.audience = '' OR ',' || REPLACE(notices.audience, ' ', '') || ',' LIKE ?)", "%,"+string(role)+",%")
}

func activeAt(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Where("notices.published_at <= ? AND (notices.expires_at IS NULL OR notices.expires_at > ?)", now, now)
}

func (r *noticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	defer observability.TrackQuery("create", "notices")()
	if err := r.db.WithContext(ctx).Create(notice).Error; err != nil {
		if isCheckViolation(err) {
			return models.NewValidationError("Notice expiry must be after its publish time")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *noticeRepository) GetByID(ctx context.Context, id uint) (*models.Notice, error) {
	var notice models.Notice
	err := cache.Aside(ctx, cache.NoticeKey(id), &notice, cache.NoticeTTL, func() error {
		ctx, span := observability.StartRepositorySpan(ctx, "GetByID", "notices")
		defer span.End()
		if err := readDB(r.db).WithContext(ctx).Preload("Author").First(&notice, id).Error; err != nil {
			return notFoundOr(err, "Notice", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &notice, nil
}

func (r *noticeRepository) List(ctx context.Context, filter NoticeFilter) ([]models.Notice, int64, error) {
	defer observability.TrackQuery("list", "notices")()

	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	q := visibleTo(readDB(r.db).WithContext(ctx).Model(&models.Notice{}), filter.ViewerRole)
	if !filter.IncludeExpired {
		q = activeAt(q, now)
	}
	if filter.Category != "" {
		q = q.Where("notices.category = ?", filter.Category)
	}
	if filter.AuthorID != 0 {
		q = q.Where("notices.author_id = ?", filter.AuthorID)
	}
	if strings.TrimSpace(filter.Query) != "" {
		like := likePattern(filter.Query)
		q = q.Where("(LOWER(notices.title) LIKE ? OR LOWER(notices.content) LIKE ?)", like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var notices []models.Notice
	err := q.Preload("Author").
		Order("notices.pinned DESC, notices.published_at DESC, notices.id DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&notices).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return notices, total, nil
}

func (r *noticeRepository) Update(ctx context.Context, notice *models.Notice) error {
	if err := r.db.WithContext(ctx).Omit("Author").Save(notice).Error; err != nil {
		if isCheckViolation(err) {
			return models.NewValidationError("Notice expiry must be after its publish time")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateNotice(ctx, notice.ID)
	return nil
}

func (r *noticeRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Notice{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notice", id)
	}
	cache.InvalidateNotice(ctx, id)
	return nil
}

func (r *noticeRepository) CountActive(ctx context.Context, role models.Role, now time.Time) (int64, error) {
	var count int64
	q := activeAt(visibleTo(readDB(r.db).WithContext(ctx).Model(&models.Notice{}), role), now)
	if err := q.Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
