package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"
	"campusconnect/internal/repository"
	"campusconnect/internal/storage"
	"campusconnect/internal/validation"

	"github.com/google/uuid"
)

const (
	maxNoticeTitleLen   = 200
	maxNoticeContentLen = 10000
	attachmentURLExpiry = 15 * time.Minute
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NoticeService manages campus notices.
type NoticeService struct {
	repo     repository.NoticeRepository
	store    storage.Store
	maxBytes int64
	now      func() time.Time
}

// NoticeInput is the create/update payload. On update, zero values keep the
// stored value except for the explicit Clear flags.
type NoticeInput struct {
	Title       string
	Content     string
	Category    string
	Priority    string
	Audience    []string
	Pinned      *bool
	PublishedAt *time.Time
	ExpiresAt   *time.Time
	// ClearExpiry removes an existing expiry on update.
	ClearExpiry bool
}

// ListNoticesInput narrows a notice listing.
type ListNoticesInput struct {
	IncludeExpired bool
	Category       string
	Query          string
	Mine           bool
	Limit          int
	Offset         int
}

func NewNoticeService(repo repository.NoticeRepository, store storage.Store, maxUploadMB int) *NoticeService {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &NoticeService{
		repo:     repo,
		store:    store,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
		now:      time.Now,
	}
}

func parseAudience(raw []string) ([]models.Role, error) {
	roles := make([]models.Role, 0, len(raw))
	for _, r := range raw {
		role := models.Role(strings.ToLower(strings.TrimSpace(r)))
		if role == "" {
			continue
		}
		if !role.Valid() {
			return nil, models.NewValidationError(fmt.Sprintf("Unknown audience role %q", r))
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// validateNotice checks n after the input has been applied.
func validateNotice(n *models.Notice) error {
	if err := firstErr(
		validation.RequiredMax("Title", n.Title, maxNoticeTitleLen),
		validation.RequiredMax("Content", n.Content, maxNoticeContentLen),
		validation.OneOf("Category", n.Category, models.NoticeCategories),
		validation.OneOf("Priority", n.Priority, models.NoticePriorities),
	); err != nil {
		return invalid(err)
	}
	if n.ExpiresAt != nil && !n.ExpiresAt.After(n.PublishedAt) {
		return models.NewValidationError("Expiry must be after the publish time")
	}
	return nil
}

func (s *NoticeService) Create(ctx context.Context, actor Actor, in NoticeInput) (*models.Notice, error) {
	if !actor.Can(auth.ActionManageNotices) {
		return nil, models.NewForbiddenError("Only faculty and administrators can post notices")
	}

	audience, err := parseAudience(in.Audience)
	if err != nil {
		return nil, err
	}

	notice := &models.Notice{
		Title:       strings.TrimSpace(in.Title),
		Content:     strings.TrimSpace(in.Content),
		Category:    in.Category,
		Priority:    in.Priority,
		Audience:    models.JoinAudience(audience),
		AuthorID:    actor.ID,
		PublishedAt: s.now().UTC(),
		ExpiresAt:   in.ExpiresAt,
	}
	if notice.Category == "" {
		notice.Category = models.NoticeGeneral
	}
	if notice.Priority == "" {
		notice.Priority = models.PriorityNormal
	}
	if in.Pinned != nil {
		notice.Pinned = *in.Pinned
	}
	if in.PublishedAt != nil {
		notice.PublishedAt = in.PublishedAt.UTC()
	}
	if err := validateNotice(notice); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, notice); err != nil {
		return nil, err
	}
	return notice, nil
}

func (s *NoticeService) List(ctx context.Context, actor Actor, in ListNoticesInput) ([]models.Notice, int64, error) {
	if in.Category != "" {
		if err := validation.OneOf("Category", in.Category, models.NoticeCategories); err != nil {
			return nil, 0, invalid(err)
		}
	}
	filter := repository.NoticeFilter{
		ViewerRole:     actor.Role,
		IncludeExpired: in.IncludeExpired && actor.Can(auth.ActionViewExpired),
		Category:       in.Category,
		Query:          in.Query,
		Now:            s.now(),
		Limit:          in.Limit,
		Offset:         in.Offset,
	}
	if in.Mine {
		filter.AuthorID = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// Get returns the notice when the actor may see it. Hidden notices are
// reported as not found.
func (s *NoticeService) Get(ctx context.Context, actor Actor, id uint) (*models.Notice, error) {
	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(actor, notice) {
		return nil, models.NewNotFoundError("Notice", id)
	}
	s.attachURL(ctx, notice)
	return notice, nil
}

func (s *NoticeService) visible(actor Actor, n *models.Notice) bool {
	if !n.VisibleTo(actor.Role) {
		return false
	}
	if actor.Can(auth.ActionViewExpired) {
		return true
	}
	now := s.now()
	return !n.PublishedAt.After(now) && !n.Expired(now)
}

func (s *NoticeService) attachURL(ctx context.Context, n *models.Notice) {
	if n.AttachmentKey == "" || s.store == nil {
		return
	}
	url, err := s.store.PresignGet(ctx, n.AttachmentKey, attachmentURLExpiry)
	if err != nil {
		observability.CaptureError(ctx, err, slog.Uint64("notice_id", uint64(n.ID)))
		return
	}
	n.AttachmentURL = url
}

func (s *NoticeService) editable(ctx context.Context, actor Actor, id uint) (*models.Notice, error) {
	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !notice.VisibleTo(actor.Role) {
		return nil, models.NewNotFoundError("Notice", id)
	}
	if !actor.Can(auth.ActionManageNotices) || !actor.owns(notice.AuthorID) {
		return nil, models.NewForbiddenError("Only the author or an administrator can change this notice")
	}
	return notice, nil
}

func (s *NoticeService) Update(ctx context.Context, actor Actor, id uint, in NoticeInput) (*models.Notice, error) {
	notice, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.Title != "" {
		notice.Title = strings.TrimSpace(in.Title)
	}
	if in.Content != "" {
		notice.Content = strings.TrimSpace(in.Content)
	}
	if in.Category != "" {
		notice.Category = in.Category
	}
	if in.Priority != "" {
		notice.Priority = in.Priority
	}
	if in.Audience != nil {
		audience, err := parseAudience(in.Audience)
		if err != nil {
			return nil, err
		}
		notice.Audience = models.JoinAudience(audience)
	}
	if in.Pinned != nil {
		notice.Pinned = *in.Pinned
	}
	if in.PublishedAt != nil {
		notice.PublishedAt = in.PublishedAt.UTC()
	}
	if in.ClearExpiry {
		notice.ExpiresAt = nil
	} else if in.ExpiresAt != nil {
		notice.ExpiresAt = in.ExpiresAt
	}
	if err := validateNotice(notice); err != nil {
		return nil, err
	}

	notice.Author = nil
	if err := s.repo.Update(ctx, notice); err != nil {
		return nil, err
	}
	s.attachURL(ctx, notice)
	return notice, nil
}

// Delete removes the notice and returns it so callers can address the
// deletion event to the same audience.
func (s *NoticeService) Delete(ctx context.Context, actor Actor, id uint) (*models.Notice, error) {
	notice, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	if notice.AttachmentKey != "" && s.store != nil {
		if err := s.store.Remove(ctx, notice.AttachmentKey); err != nil {
			observability.CaptureError(ctx, err, slog.Uint64("notice_id", uint64(id)))
		}
	}
	return notice, nil
}

// UploadAttachment stores content as the notice's single attachment,
// replacing any previous one.
func (s *NoticeService) UploadAttachment(ctx context.Context, actor Actor, id uint, filename string, content []byte) (*models.Notice, error) {
	if s.store == nil {
		return nil, models.NewUnavailableError("File storage is not configured", storage.ErrNotConfigured)
	}
	notice, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	contentType := http.DetectContentType(content)
	if !allowedAttachment(contentType) {
		return nil, models.NewValidationError("Unsupported attachment type")
	}

	key := fmt.Sprintf("notices/%d/%s-%s", id, uuid.NewString(), safeFilename(filename))
	if err := s.store.Put(ctx, key, content, contentType); err != nil {
		return nil, models.NewInternalError(err)
	}

	previous := notice.AttachmentKey
	notice.AttachmentKey = key
	notice.Author = nil
	if err := s.repo.Update(ctx, notice); err != nil {
		_ = s.store.Remove(ctx, key)
		return nil, err
	}
	if previous != "" {
		_ = s.store.Remove(ctx, previous)
	}
	s.attachURL(ctx, notice)
	return notice, nil
}

func allowedAttachment(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "application/pdf", "text/plain", "image/png", "image/jpeg", "image/gif", "image/webp", "application/zip":
		return true
	}
	return false
}

func safeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "attachment"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return base
}
