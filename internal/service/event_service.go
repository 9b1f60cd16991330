package service

import (
	"context"
	"strings"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/validation"
)

const (
	maxEventTitleLen       = 200
	maxEventDescriptionLen = 5000
	maxEventLocationLen    = 200
	maxCategoryLen         = 32
)

// EventService manages events and attendance.
type EventService struct {
	repo repository.EventRepository
	now  func() time.Time
}

// EventInput is the create/update payload. On update, zero values keep the stored value.
type EventInput struct {
	Title       string
	Description *string
	Location    *string
	Category    *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Capacity    *int
}

// ListEventsInput narrows an event listing.
type ListEventsInput struct {
	Window   string
	Category string
	Query    string
	Mine     bool
	Limit    int
	Offset   int
}

func NewEventService(repo repository.EventRepository) *EventService {
	return &EventService{repo: repo, now: time.Now}
}

func applyEventInput(e *models.Event, in EventInput) {
	if in.Title != "" {
		e.Title = strings.TrimSpace(in.Title)
	}
	if in.Description != nil {
		e.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		e.Location = strings.TrimSpace(*in.Location)
	}
	if in.Category != nil {
		e.Category = strings.ToLower(strings.TrimSpace(*in.Category))
	}
	if in.StartsAt != nil {
		e.StartsAt = in.StartsAt.UTC()
	}
	if in.EndsAt != nil {
		e.EndsAt = in.EndsAt.UTC()
	}
	if in.Capacity != nil {
		e.Capacity = *in.Capacity
	}
}

func validateEvent(e *models.Event) error {
	if err := firstErr(
		validation.RequiredMax("Title", e.Title, maxEventTitleLen),
		validation.MaxLength("Description", e.Description, maxEventDescriptionLen),
		validation.MaxLength("Location", e.Location, maxEventLocationLen),
		validation.MaxLength("Category", e.Category, maxCategoryLen),
	); err != nil {
		return invalid(err)
	}
	if e.StartsAt.IsZero() || e.EndsAt.IsZero() {
		return models.NewValidationError("Start and end times are required")
	}
	if !e.EndsAt.After(e.StartsAt) {
		return models.NewValidationError("Event must end after it starts")
	}
	if e.Capacity < 0 {
		return models.NewValidationError("Capacity cannot be negative")
	}
	return nil
}

func (s *EventService) Create(ctx context.Context, actor Actor, in EventInput) (*models.Event, error) {
	if !actor.Can(auth.ActionManageEvents) {
		return nil, models.NewForbiddenError("Only faculty and administrators can create events")
	}
	event := &models.Event{OrganizerID: actor.ID}
	applyEventInput(event, in)
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) List(ctx context.Context, actor Actor, in ListEventsInput) ([]models.Event, int64, error) {
	window := in.Window
	switch window {
	case "":
		window = repository.EventWindowUpcoming
	case repository.EventWindowUpcoming, repository.EventWindowPast, repository.EventWindowAll:
	default:
		return nil, 0, models.NewValidationError("Scope must be one of: upcoming, past, all")
	}
	filter := repository.EventFilter{
		Window:   window,
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
		Query:    in.Query,
		Now:      s.now(),
		Limit:    in.Limit,
		Offset:   in.Offset,
	}
	if in.Mine {
		filter.OrganizerID = actor.ID
	}
	return s.repo.List(ctx, filter, actor.ID)
}

func (s *EventService) Get(ctx context.Context, actor Actor, id uint) (*models.Event, error) {
	return s.repo.GetByID(ctx, id, actor.ID)
}

// organized loads the event and checks the actor organizes it or is an admin.
func (s *EventService) organized(ctx context.Context, actor Actor, id uint, action auth.Action) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if !actor.Can(action) || !actor.owns(event.OrganizerID) {
		return nil, models.NewForbiddenError("Only the organizer or an administrator can do this")
	}
	return event, nil
}

func (s *EventService) Update(ctx context.Context, actor Actor, id uint, in EventInput) (*models.Event, error) {
	event, err := s.organized(ctx, actor, id, auth.ActionManageEvents)
	if err != nil {
		return nil, err
	}
	applyEventInput(event, in)
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if event.Capacity > 0 && event.Capacity < event.AttendeeCount {
		return nil, models.NewConflictError("Capacity is below the number of registered attendees")
	}
	event.Organizer = nil
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.organized(ctx, actor, id, auth.ActionManageEvents); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *EventService) Register(ctx context.Context, actor Actor, id uint) (*models.EventAttendee, error) {
	if !actor.Can(auth.ActionRegisterEvents) {
		return nil, models.NewForbiddenError("You cannot register for events")
	}
	return s.repo.Register(ctx, id, actor.ID, s.now())
}

func (s *EventService) CancelRegistration(ctx context.Context, actor Actor, id uint) error {
	return s.repo.CancelRegistration(ctx, id, actor.ID)
}

func (s *EventService) ListAttendees(ctx context.Context, actor Actor, id uint) ([]models.EventAttendee, error) {
	if _, err := s.organized(ctx, actor, id, auth.ActionViewAttendees); err != nil {
		return nil, err
	}
	return s.repo.ListAttendees(ctx, id)
}

func (s *EventService) MarkAttendance(ctx context.Context, actor Actor, eventID, userID uint) (*models.EventAttendee, error) {
	if _, err := s.organized(ctx, actor, eventID, auth.ActionViewAttendees); err != nil {
		return nil, err
	}
	return s.repo.MarkAttendance(ctx, eventID, userID, s.now().UTC())
}
