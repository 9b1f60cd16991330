package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventService_CreateValidation(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	tests := []struct {
		name string
		in   EventInput
	}{
		{"missing title", EventInput{StartsAt: &start, EndsAt: &end}},
		{"title too long", EventInput{Title: strings.Repeat("x", 201), StartsAt: &start, EndsAt: &end}},
		{"missing times", EventInput{Title: "Career fair"}},
		{"ends before start", EventInput{Title: "Career fair", StartsAt: &end, EndsAt: &start}},
		{"zero length", EventInput{Title: "Career fair", StartsAt: &start, EndsAt: &start}},
		{"negative capacity", EventInput{Title: "Career fair", StartsAt: &start, EndsAt: &end, Capacity: intPtr(-1)}},
		{"long location", EventInput{Title: "Career fair", StartsAt: &start, EndsAt: &end, Location: strPtr(strings.Repeat("l", 201))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := NewEventService(noopEventRepo())
			_, err := svc.Create(context.Background(), faculty, tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestEventService_CreatePermissions(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	svc := NewEventService(noopEventRepo())

	_, err := svc.Create(context.Background(), student, EventInput{Title: "Party", StartsAt: &start, EndsAt: &end})
	assertCode(t, err, models.CodeForbidden)

	e, err := svc.Create(context.Background(), faculty, EventInput{
		Title: " Open day ", StartsAt: &start, EndsAt: &end, Category: strPtr(" Admissions "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Open day", e.Title)
	assert.Equal(t, "admissions", e.Category)
	assert.Equal(t, faculty.ID, e.OrganizerID)
}

func TestEventService_ListWindow(t *testing.T) {
	var got repository.EventFilter
	repo := noopEventRepo()
	repo.listFn = func(_ context.Context, f repository.EventFilter, _ uint) ([]models.Event, int64, error) {
		got = f
		return nil, 0, nil
	}
	svc := NewEventService(repo)

	_, _, err := svc.List(context.Background(), student, ListEventsInput{})
	require.NoError(t, err)
	assert.Equal(t, repository.EventWindowUpcoming, got.Window)

	_, _, err = svc.List(context.Background(), faculty, ListEventsInput{Window: repository.EventWindowPast, Mine: true})
	require.NoError(t, err)
	assert.Equal(t, repository.EventWindowPast, got.Window)
	assert.Equal(t, faculty.ID, got.OrganizerID)

	_, _, err = svc.List(context.Background(), student, ListEventsInput{Window: "someday"})
	assertValidationError(t, err)
}

func TestEventService_OrganizerOnlyOperations(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := noopEventRepo()
	repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Event, error) {
		return &models.Event{
			ID: id, Title: "Hackathon", StartsAt: start, EndsAt: start.Add(24 * time.Hour),
			Capacity: 50, AttendeeCount: 30, OrganizerID: 40,
		}, nil
	}
	svc := NewEventService(repo)
	ctx := context.Background()

	_, err := svc.Update(ctx, faculty, 1, EventInput{Title: "Renamed"})
	assertCode(t, err, models.CodeForbidden)

	_, err = svc.ListAttendees(ctx, faculty, 1)
	assertCode(t, err, models.CodeForbidden)

	_, err = svc.MarkAttendance(ctx, student, 1, 5)
	assertCode(t, err, models.CodeForbidden)

	err = svc.Delete(ctx, faculty, 1)
	assertCode(t, err, models.CodeForbidden)

	organizer := Actor{ID: 40, Role: models.RoleFaculty}
	_, err = svc.Update(ctx, organizer, 1, EventInput{Capacity: intPtr(10)})
	assertCode(t, err, models.CodeConflict)

	e, err := svc.Update(ctx, organizer, 1, EventInput{Capacity: intPtr(0)})
	require.NoError(t, err)
	assert.Zero(t, e.Capacity)

	marked, err := svc.MarkAttendance(ctx, admin, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, models.AttendeeAttended, marked.Status)
}

func TestEventService_RegisterUsesCurrentTime(t *testing.T) {
	fixed := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	var passed time.Time
	repo := noopEventRepo()
	repo.registerFn = func(_ context.Context, eventID, userID uint, now time.Time) (*models.EventAttendee, error) {
		passed = now
		return &models.EventAttendee{EventID: eventID, UserID: userID, Status: models.AttendeeRegistered}, nil
	}
	svc := NewEventService(repo)
	svc.now = func() time.Time { return fixed }

	a, err := svc.Register(context.Background(), student, 3)
	require.NoError(t, err)
	assert.Equal(t, student.ID, a.UserID)
	assert.Equal(t, fixed, passed)
}
