package service

import (
	"context"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/cache"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"

	"golang.org/x/sync/errgroup"
)

const dashboardPreviewSize = 5

// Dashboard is the per-user landing page summary.
type Dashboard struct {
	ActiveNotices      int64           `json:"active_notices"`
	UpcomingEvents     int64           `json:"upcoming_events"`
	MyRegistrations    int64           `json:"my_registrations"`
	ForumPostsThisWeek int64           `json:"forum_posts_this_week"`
	Students           *int64          `json:"students,omitempty"`
	LatestNotices      []models.Notice `json:"latest_notices"`
	NextEvents         []models.Event  `json:"next_events"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// DashboardService aggregates counts from every module concurrently.
type DashboardService struct {
	notices  repository.NoticeRepository
	events   repository.EventRepository
	forum    repository.ForumRepository
	profiles repository.ProfileRepository
	now      func() time.Time
}

func NewDashboardService(
	notices repository.NoticeRepository,
	events repository.EventRepository,
	forum repository.ForumRepository,
	profiles repository.ProfileRepository,
) *DashboardService {
	return &DashboardService{notices: notices, events: events, forum: forum, profiles: profiles, now: time.Now}
}

// Get returns the actor's dashboard. Results are cached briefly per user.
func (s *DashboardService) Get(ctx context.Context, actor Actor) (*Dashboard, error) {
	var d Dashboard
	err := cache.Aside(ctx, cache.DashboardKey(actor.ID), &d, cache.DashboardTTL, func() error {
		built, err := s.build(ctx, actor)
		if err != nil {
			return err
		}
		d = *built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DashboardService) build(ctx context.Context, actor Actor) (*Dashboard, error) {
	now := s.now().UTC()
	d := &Dashboard{GeneratedAt: now}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.notices.CountActive(ctx, actor.Role, now)
		d.ActiveNotices = n
		return err
	})
	g.Go(func() error {
		n, err := s.events.CountUpcoming(ctx, now)
		d.UpcomingEvents = n
		return err
	})
	g.Go(func() error {
		n, err := s.events.CountRegistrations(ctx, actor.ID, now)
		d.MyRegistrations = n
		return err
	})
	g.Go(func() error {
		n, err := s.forum.CountPostsSince(ctx, now.AddDate(0, 0, -7))
		d.ForumPostsThisWeek = n
		return err
	})
	g.Go(func() error {
		list, _, err := s.notices.List(ctx, repository.NoticeFilter{ViewerRole: actor.Role, Now: now, Limit: dashboardPreviewSize})
		d.LatestNotices = list
		return err
	})
	g.Go(func() error {
		list, _, err := s.events.List(ctx, repository.EventFilter{Window: repository.EventWindowUpcoming, Now: now, Limit: dashboardPreviewSize}, actor.ID)
		d.NextEvents = list
		return err
	})
	if actor.Can(auth.ActionViewStudents) {
		g.Go(func() error {
			n, err := s.profiles.CountByRole(ctx, models.RoleStudent)
			d.Students = &n
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if d.LatestNotices == nil {
		d.LatestNotices = []models.Notice{}
	}
	if d.NextEvents == nil {
		d.NextEvents = []models.Event{}
	}
	return d, nil
}
