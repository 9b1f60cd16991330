package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	student = Actor{ID: 1, Role: models.RoleStudent}
	faculty = Actor{ID: 2, Role: models.RoleFaculty}
	admin   = Actor{ID: 3, Role: models.RoleAdmin}
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getByIDFn    func(context.Context, uint) (*models.Profile, error)
	getByEmailFn func(context.Context, string) (*models.Profile, error)
	createFn     func(context.Context, *models.Profile) error
	updateFn     func(context.Context, *models.Profile) error
	deleteFn     func(context.Context, uint) error
	listFn       func(context.Context, repository.ProfileFilter) ([]models.Profile, int64, error)
	countFn      func(context.Context, models.Role) (int64, error)
}

func (s *profileRepoStub) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	return s.getByIDFn(ctx, id)
}
func (s *profileRepoStub) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *profileRepoStub) Create(ctx context.Context, p *models.Profile) error {
	return s.createFn(ctx, p)
}
func (s *profileRepoStub) Update(ctx context.Context, p *models.Profile) error {
	return s.updateFn(ctx, p)
}
func (s *profileRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *profileRepoStub) List(ctx context.Context, f repository.ProfileFilter) ([]models.Profile, int64, error) {
	return s.listFn(ctx, f)
}
func (s *profileRepoStub) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	return s.countFn(ctx, role)
}
func (s *profileRepoStub) TouchLastSeen(context.Context, uint, time.Time) error  { return nil }
func (s *profileRepoStub) UpdatePassword(context.Context, uint, string) error { return nil }

func noopProfileRepo() *profileRepoStub {
	return &profileRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Profile, error) {
			return &models.Profile{ID: id, Email: "member@campus.edu", Role: models.RoleStudent}, nil
		},
		getByEmailFn: func(context.Context, string) (*models.Profile, error) { return nil, nil },
		createFn: func(_ context.Context, p *models.Profile) error {
			p.ID = 100
			return nil
		},
		updateFn: func(context.Context, *models.Profile) error { return nil },
		deleteFn: func(context.Context, uint) error { return nil },
		listFn: func(context.Context, repository.ProfileFilter) ([]models.Profile, int64, error) {
			return nil, 0, nil
		},
		countFn: func(context.Context, models.Role) (int64, error) { return 0, nil },
	}
}

// noticeRepoStub is a stub for repository.NoticeRepository.
type noticeRepoStub struct {
	createFn  func(context.Context, *models.Notice) error
	getByIDFn func(context.Context, uint) (*models.Notice, error)
	listFn    func(context.Context, repository.NoticeFilter) ([]models.Notice, int64, error)
	updateFn  func(context.Context, *models.Notice) error
	deleteFn  func(context.Context, uint) error
	countFn   func(context.Context, models.Role, time.Time) (int64, error)
}

func (s *noticeRepoStub) Create(ctx context.Context, n *models.Notice) error {
	return s.createFn(ctx, n)
}
func (s *noticeRepoStub) GetByID(ctx context.Context, id uint) (*models.Notice, error) {
	return s.getByIDFn(ctx, id)
}
func (s *noticeRepoStub) List(ctx context.Context, f repository.NoticeFilter) ([]models.Notice, int64, error) {
	return s.listFn(ctx, f)
}
func (s *noticeRepoStub) Update(ctx context.Context, n *models.Notice) error {
	return s.updateFn(ctx, n)
}
func (s *noticeRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *noticeRepoStub) CountActive(ctx context.Context, role models.Role, now time.Time) (int64, error) {
	return s.countFn(ctx, role, now)
}

func noopNoticeRepo() *noticeRepoStub {
	return &noticeRepoStub{
		createFn:  func(context.Context, *models.Notice) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Notice, error) { return &models.Notice{ID: id}, nil },
		listFn: func(context.Context, repository.NoticeFilter) ([]models.Notice, int64, error) {
			return nil, 0, nil
		},
		updateFn: func(context.Context, *models.Notice) error { return nil },
		deleteFn: func(context.Context, uint) error { return nil },
		countFn:  func(context.Context, models.Role, time.Time) (int64, error) { return 0, nil },
	}
}

// eventRepoStub is a stub for repository.EventRepository.
type eventRepoStub struct {
	createFn     func(context.Context, *models.Event) error
	getByIDFn    func(context.Context, uint, uint) (*models.Event, error)
	listFn       func(context.Context, repository.EventFilter, uint) ([]models.Event, int64, error)
	updateFn     func(context.Context, *models.Event) error
	deleteFn     func(context.Context, uint) error
	registerFn   func(context.Context, uint, uint, time.Time) (*models.EventAttendee, error)
	cancelFn     func(context.Context, uint, uint) error
	attendeesFn  func(context.Context, uint) ([]models.EventAttendee, error)
	markFn       func(context.Context, uint, uint, time.Time) (*models.EventAttendee, error)
	upcomingFn   func(context.Context, time.Time) (int64, error)
	registeredFn func(context.Context, uint, time.Time) (int64, error)
}

func (s *eventRepoStub) Create(ctx context.Context, e *models.Event) error { return s.createFn(ctx, e) }
func (s *eventRepoStub) GetByID(ctx context.Context, id, userID uint) (*models.Event, error) {
	return s.getByIDFn(ctx, id, userID)
}
func (s *eventRepoStub) List(ctx context.Context, f repository.EventFilter, userID uint) ([]models.Event, int64, error) {
	return s.listFn(ctx, f, userID)
}
func (s *eventRepoStub) Update(ctx context.Context, e *models.Event) error { return s.updateFn(ctx, e) }
func (s *eventRepoStub) Delete(ctx context.Context, id uint) error         { return s.deleteFn(ctx, id) }
func (s *eventRepoStub) Register(ctx context.Context, eventID, userID uint, now time.Time) (*models.EventAttendee, error) {
	return s.registerFn(ctx, eventID, userID, now)
}
func (s *eventRepoStub) CancelRegistration(ctx context.Context, eventID, userID uint) error {
	return s.cancelFn(ctx, eventID, userID)
}
func (s *eventRepoStub) ListAttendees(ctx context.Context, eventID uint) ([]models.EventAttendee, error) {
	return s.attendeesFn(ctx, eventID)
}
func (s *eventRepoStub) MarkAttendance(ctx context.Context, eventID, userID uint, at time.Time) (*models.EventAttendee, error) {
	return s.markFn(ctx, eventID, userID, at)
}
func (s *eventRepoStub) CountUpcoming(ctx context.Context, now time.Time) (int64, error) {
	return s.upcomingFn(ctx, now)
}
func (s *eventRepoStub) CountRegistrations(ctx context.Context, userID uint, now time.Time) (int64, error) {
	return s.registeredFn(ctx, userID, now)
}

func noopEventRepo() *eventRepoStub {
	return &eventRepoStub{
		createFn:  func(context.Context, *models.Event) error { return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Event, error) { return &models.Event{ID: id}, nil },
		listFn: func(context.Context, repository.EventFilter, uint) ([]models.Event, int64, error) {
			return nil, 0, nil
		},
		updateFn: func(context.Context, *models.Event) error { return nil },
		deleteFn: func(context.Context, uint) error { return nil },
		registerFn: func(_ context.Context, eventID, userID uint, _ time.Time) (*models.EventAttendee, error) {
			return &models.EventAttendee{EventID: eventID, UserID: userID, Status: models.AttendeeRegistered}, nil
		},
		cancelFn:    func(context.Context, uint, uint) error { return nil },
		attendeesFn: func(context.Context, uint) ([]models.EventAttendee, error) { return nil, nil },
		markFn: func(_ context.Context, eventID, userID uint, at time.Time) (*models.EventAttendee, error) {
			return &models.EventAttendee{EventID: eventID, UserID: userID, Status: models.AttendeeAttended, CheckedInAt: &at}, nil
		},
		upcomingFn:   func(context.Context, time.Time) (int64, error) { return 0, nil },
		registeredFn: func(context.Context, uint, time.Time) (int64, error) { return 0, nil },
	}
}

// forumRepoStub is a stub for repository.ForumRepository.
type forumRepoStub struct {
	createPostFn    func(context.Context, *models.ForumPost) error
	getPostFn       func(context.Context, uint, uint) (*models.ForumPost, error)
	listPostsFn     func(context.Context, repository.ForumFilter, uint) ([]models.ForumPost, int64, error)
	updatePostFn    func(context.Context, *models.ForumPost) error
	deletePostFn    func(context.Context, uint) error
	toggleFn        func(context.Context, uint, uint) (*models.UpvoteResult, error)
	countSinceFn    func(context.Context, time.Time) (int64, error)
	listCommentsFn  func(context.Context, uint, int, int) ([]models.ForumComment, error)
	getCommentFn    func(context.Context, uint) (*models.ForumComment, error)
	createCommentFn func(context.Context, *models.ForumComment) error
	deleteCommentFn func(context.Context, uint) error
}

func (s *forumRepoStub) CreatePost(ctx context.Context, p *models.ForumPost) error {
	return s.createPostFn(ctx, p)
}
func (s *forumRepoStub) GetPost(ctx context.Context, id, userID uint) (*models.ForumPost, error) {
	return s.getPostFn(ctx, id, userID)
}
func (s *forumRepoStub) ListPosts(ctx context.Context, f repository.ForumFilter, userID uint) ([]models.ForumPost, int64, error) {
	return s.listPostsFn(ctx, f, userID)
}
func (s *forumRepoStub) UpdatePost(ctx context.Context, p *models.ForumPost) error {
	return s.updatePostFn(ctx, p)
}
func (s *forumRepoStub) DeletePost(ctx context.Context, id uint) error { return s.deletePostFn(ctx, id) }
func (s *forumRepoStub) ToggleUpvote(ctx context.Context, postID, userID uint) (*models.UpvoteResult, error) {
	return s.toggleFn(ctx, postID, userID)
}
func (s *forumRepoStub) CountPostsSince(ctx context.Context, since time.Time) (int64, error) {
	return s.countSinceFn(ctx, since)
}
func (s *forumRepoStub) ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.ForumComment, error) {
	return s.listCommentsFn(ctx, postID, limit, offset)
}
func (s *forumRepoStub) GetComment(ctx context.Context, id uint) (*models.ForumComment, error) {
	return s.getCommentFn(ctx, id)
}
func (s *forumRepoStub) CreateComment(ctx context.Context, c *models.ForumComment) error {
	return s.createCommentFn(ctx, c)
}
func (s *forumRepoStub) DeleteComment(ctx context.Context, id uint) error {
	return s.deleteCommentFn(ctx, id)
}

func noopForumRepo() *forumRepoStub {
	return &forumRepoStub{
		createPostFn: func(context.Context, *models.ForumPost) error { return nil },
		getPostFn: func(_ context.Context, id, _ uint) (*models.ForumPost, error) {
			return &models.ForumPost{ID: id, AuthorID: 1, Title: "t", Content: "c"}, nil
		},
		listPostsFn: func(context.Context, repository.ForumFilter, uint) ([]models.ForumPost, int64, error) {
			return nil, 0, nil
		},
		updatePostFn: func(context.Context, *models.ForumPost) error { return nil },
		deletePostFn: func(context.Context, uint) error { return nil },
		toggleFn: func(_ context.Context, postID, _ uint) (*models.UpvoteResult, error) {
			return &models.UpvoteResult{PostID: postID, Upvoted: true, Upvotes: 1}, nil
		},
		countSinceFn:   func(context.Context, time.Time) (int64, error) { return 0, nil },
		listCommentsFn: func(context.Context, uint, int, int) ([]models.ForumComment, error) { return nil, nil },
		getCommentFn: func(_ context.Context, id uint) (*models.ForumComment, error) {
			return &models.ForumComment{ID: id, PostID: 1, AuthorID: 1}, nil
		},
		createCommentFn: func(context.Context, *models.ForumComment) error { return nil },
		deleteCommentFn: func(context.Context, uint) error { return nil },
	}
}

// messageRepoStub is a stub for repository.MessageRepository.
type messageRepoStub struct {
	getOrCreateFn   func(context.Context, uint, uint) (*models.Conversation, bool, error)
	isParticipantFn func(context.Context, uint, uint) (bool, error)
	createFn        func(context.Context, *models.Message) error
	participantsFn  func(context.Context, uint) ([]uint, error)
}

func (s *messageRepoStub) GetOrCreateDirect(ctx context.Context, a, b uint) (*models.Conversation, bool, error) {
	return s.getOrCreateFn(ctx, a, b)
}
func (s *messageRepoStub) GetConversation(_ context.Context, id uint) (*models.Conversation, error) {
	return &models.Conversation{ID: id}, nil
}
func (s *messageRepoStub) ListForUser(context.Context, uint) ([]models.Conversation, error) {
	return nil, nil
}
func (s *messageRepoStub) IsParticipant(ctx context.Context, convID, userID uint) (bool, error) {
	return s.isParticipantFn(ctx, convID, userID)
}
func (s *messageRepoStub) ParticipantIDs(ctx context.Context, convID uint) ([]uint, error) {
	return s.participantsFn(ctx, convID)
}
func (s *messageRepoStub) ListMessages(context.Context, uint, int, int) ([]models.Message, error) {
	return nil, nil
}
func (s *messageRepoStub) CreateMessage(ctx context.Context, m *models.Message) error {
	return s.createFn(ctx, m)
}
func (s *messageRepoStub) MarkRead(context.Context, uint, uint, time.Time) error { return nil }

func noopMessageRepo() *messageRepoStub {
	return &messageRepoStub{
		getOrCreateFn: func(context.Context, uint, uint) (*models.Conversation, bool, error) {
			return &models.Conversation{ID: 9}, true, nil
		},
		isParticipantFn: func(context.Context, uint, uint) (bool, error) { return true, nil },
		createFn:        func(context.Context, *models.Message) error { return nil },
		participantsFn:  func(context.Context, uint) ([]uint, error) { return []uint{1, 2}, nil },
	}
}
