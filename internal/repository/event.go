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
	"gorm.io/gorm/clause"
)

// Event listing windows.
const (
	EventWindowUpcoming = "upcoming"
	EventWindowPast     = "past"
	EventWindowAll      = "all"
)

// EventFilter narrows event listings.
type EventFilter struct {
	Window      string
	Category    string
	OrganizerID uint
	Query       string
	Now         time.Time
	Limit       int
	Offset      int
}

// EventRepository defines persistence operations for events and attendance.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Event, error)
	List(ctx context.Context, filter EventFilter, currentUserID uint) ([]models.Event, int64, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id uint) error
	Register(ctx context.Context, eventID, userID uint, now time.Time) (*models.EventAttendee, error)
	CancelRegistration(ctx context.Context, eventID, userID uint) error
	ListAttendees(ctx context.Context, eventID uint) ([]models.EventAttendee, error)
	MarkAttendance(ctx context.Context, eventID, userID uint, at time.Time) (*models.EventAttendee, error)
	CountUpcoming(ctx context.Context, now time.Time) (int64, error)
	CountRegistrations(ctx context.Context, userID uint, now time.Time) (int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository returns a new EventRepository implementation.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// applyEventDetails adds attendee counts and the caller's registration state in a single query.
func applyEventDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "events.*, " +
		"(SELECT COUNT(*) FROM event_attendees ea WHERE ea.event_id = events.id AND ea.status <> 'cancelled') AS attendee_count"
	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM event_attendees me WHERE me.event_id = events.id AND me.user_id = ? AND me.status <> 'cancelled') AS attending", currentUserID)
	}
	return db.Select(selectQuery + ", false AS attending")
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	defer observability.TrackQuery("create", "events")()
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if isCheckViolation(err) {
			return models.NewValidationError("Event must end after it starts")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Event, error) {
	var event models.Event
	load := func() error {
		ctx, span := observability.StartRepositorySpan(ctx, "GetByID", "events")
		defer span.End()
		err := applyEventDetails(readDB(r.db).WithContext(ctx), currentUserID).
			Preload("Organizer").
			First(&event, id).Error
		if err != nil {
			return notFoundOr(err, "Event", id)
		}
		return nil
	}

	var err error
	if currentUserID == 0 {
		err = cache.Aside(ctx, cache.EventKey(id), &event, cache.EventTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter, currentUserID uint) ([]models.Event, int64, error) {
	defer observability.TrackQuery("list", "events")()

	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	q := readDB(r.db).WithContext(ctx).Model(&models.Event{})
	order := "events.starts_at ASC, events.id ASC"
	switch filter.Window {
	case EventWindowPast:
		q = q.Where("events.ends_at <= ?", now)
		order = "events.starts_at DESC, events.id DESC"
	case EventWindowAll:
	default:
		q = q.Where("events.ends_at > ?", now)
	}
	if filter.Category != "" {
		q = q.Where("events.category = ?", filter.Category)
	}
	if filter.OrganizerID != 0 {
		q = q.Where("events.organizer_id = ?", filter.OrganizerID)
	}
	if strings.TrimSpace(filter.Query) != "" {
		like := likePattern(filter.Query)
		q = q.Where("(LOWER(events.title) LIKE ? OR LOWER(events.description) LIKE ? OR LOWER(events.location) LIKE ?)", like, like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var events []models.Event
	err := applyEventDetails(q, currentUserID).
		Preload("Organizer").
		Order(order).
		Limit(clampLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return events, total, nil
}

func (r *eventRepository) Update(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Omit("Organizer").Save(event).Error; err != nil {
		if isCheckViolation(err) {
			return models.NewValidationError("Event must end after it starts")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateEvent(ctx, event.ID)
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventAttendee{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Event{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Event", id)
		}
		return nil
	})
	if err != nil {
		return notFoundOr(err, "Event", id)
	}
	cache.InvalidateEvent(ctx, id)
	return nil
}

// Register adds userID to the event. It is idempotent for an active
// registration and reactivates a cancelled one. Capacity is checked while
// holding a lock on the event row.
func (r *eventRepository) Register(ctx context.Context, eventID, userID uint, now time.Time) (*models.EventAttendee, error) {
	var attendee models.EventAttendee
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, eventID).Error; err != nil {
			return err
		}
		if !event.EndsAt.After(now) {
			return models.NewValidationError("Event has already ended")
		}

		err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&attendee).Error
		switch {
		case err == nil && attendee.Status != models.AttendeeCancelled:
			return nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if event.Capacity > 0 {
			var taken int64
			if err := tx.Model(&models.EventAttendee{}).
				Where("event_id = ? AND status <> ?", eventID, models.AttendeeCancelled).
				Count(&taken).Error; err != nil {
				return err
			}
			if taken >= int64(event.Capacity) {
				return models.NewConflictError("Event is full")
			}
		}

		if attendee.ID != 0 {
			attendee.Status = models.AttendeeRegistered
			attendee.CheckedInAt = nil
			return tx.Save(&attendee).Error
		}
		attendee = models.EventAttendee{EventID: eventID, UserID: userID, Status: models.AttendeeRegistered}
		return tx.Create(&attendee).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("Already registered for this event")
		}
		return nil, notFoundOr(err, "Event", eventID)
	}
	cache.InvalidateEvent(ctx, eventID)
	return &attendee, nil
}

func (r *eventRepository) CancelRegistration(ctx context.Context, eventID, userID uint) error {
	res := r.db.WithContext(ctx).Model(&models.EventAttendee{}).
		Where("event_id = ? AND user_id = ? AND status = ?", eventID, userID, models.AttendeeRegistered).
		Update("status", models.AttendeeCancelled)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Registration", eventID)
	}
	cache.InvalidateEvent(ctx, eventID)
	return nil
}

func (r *eventRepository) ListAttendees(ctx context.Context, eventID uint) ([]models.EventAttendee, error) {
	var attendees []models.EventAttendee
	err := readDB(r.db).WithContext(ctx).
		Preload("Profile").
		Where("event_id = ? AND status <> ?", eventID, models.AttendeeCancelled).
		Order("created_at ASC").
		Find(&attendees).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return attendees, nil
}

func (r *eventRepository) MarkAttendance(ctx context.Context, eventID, userID uint, at time.Time) (*models.EventAttendee, error) {
	var attendee models.EventAttendee
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND status <> ?", eventID, userID, models.AttendeeCancelled).
		First(&attendee).Error
	if err != nil {
		return nil, notFoundOr(err, "Registration", userID)
	}
	attendee.Status = models.AttendeeAttended
	attendee.CheckedInAt = &at
	if err := r.db.WithContext(ctx).Save(&attendee).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &attendee, nil
}

func (r *eventRepository) CountUpcoming(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Event{}).Where("ends_at > ?", now).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *eventRepository) CountRegistrations(ctx context.Context, userID uint, now time.Time) (int64, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.EventAttendee{}).
		Joins("JOIN events ON events.id = event_attendees.event_id AND events.deleted_at IS NULL").
		Where("event_attendees.user_id = ? AND event_attendees.status = ? AND events.ends_at > ?", userID, models.AttendeeRegistered, now).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
