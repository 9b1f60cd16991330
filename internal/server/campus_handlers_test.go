package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/search"
	"campusconnect/internal/service"
	"campusconnect/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotices_AudienceVisibility(t *testing.T) {
	ts := newTestServer(t)
	faculty := ts.createProfile(t, "prof@campus.edu", models.RoleFaculty)
	student := ts.createProfile(t, "kid@campus.edu", models.RoleStudent)
	facultyToken, studentToken := ts.tokenFor(t, faculty), ts.tokenFor(t, student)

	resp := ts.do(t, http.MethodPost, "/api/notices", studentToken, noticeRequest{Title: "Nope", Content: "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/notices", facultyToken, noticeRequest{
		Title: "Exam timetable", Content: "Finals start in May", Category: "exam", Priority: "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	public := decode[models.Notice](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/notices", facultyToken, noticeRequest{
		Title: "Staff meeting", Content: "Room 101", Audience: []string{"faculty"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	staffOnly := decode[models.Notice](t, resp)

	resp = ts.do(t, http.MethodGet, "/api/notices", studentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[listResponse[models.Notice]](t, resp)
	require.Len(t, list.Items, 1)
	assert.Equal(t, public.ID, list.Items[0].ID)
	assert.EqualValues(t, 1, list.Total)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/notices/%d", staffOnly.ID), studentToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/notices", facultyToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[listResponse[models.Notice]](t, resp).Items, 2)

	resp = ts.do(t, http.MethodGet, "/api/notices?category=exam", facultyToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[listResponse[models.Notice]](t, resp).Items, 1)

	resp = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/notices/%d", public.ID), facultyToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/notices/%d", public.ID), studentToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotices_InvalidInput(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, ts.createProfile(t, "prof@campus.edu", models.RoleFaculty))

	resp := ts.do(t, http.MethodPost, "/api/notices", token, noticeRequest{Title: "x", Content: "y", Category: "gossip"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/notices/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvents_RegistrationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	organizer := ts.createProfile(t, "org@campus.edu", models.RoleFaculty)
	first := ts.createProfile(t, "one@campus.edu", models.RoleStudent)
	second := ts.createProfile(t, "two@campus.edu", models.RoleStudent)
	orgToken := ts.tokenFor(t, organizer)

	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	end := start.Add(2 * time.Hour)
	capacity := 1

	resp := ts.do(t, http.MethodPost, "/api/events", ts.tokenFor(t, first), eventRequest{
		Title: "Sneaky", StartsAt: &start, EndsAt: &end,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/events", orgToken, eventRequest{
		Title: "Robotics workshop", StartsAt: &start, EndsAt: &end, Capacity: &capacity,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	event := decode[models.Event](t, resp)

	registerPath := fmt.Sprintf("/api/events/%d/register", event.ID)
	resp = ts.do(t, http.MethodPost, registerPath, ts.tokenFor(t, first), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, registerPath, ts.tokenFor(t, second), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "event is full")

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/events/%d/attendees", event.ID), ts.tokenFor(t, first), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/events/%d/attendees", event.ID), orgToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attendees := decode[[]models.EventAttendee](t, resp)
	require.Len(t, attendees, 1)
	assert.Equal(t, first.ID, attendees[0].UserID)

	resp = ts.do(t, http.MethodDelete, registerPath, ts.tokenFor(t, first), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, registerPath, ts.tokenFor(t, second), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/events", ts.tokenFor(t, second), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[listResponse[models.Event]](t, resp)
	require.Len(t, events.Items, 1)
	assert.Equal(t, 1, events.Items[0].AttendeeCount)
}

func TestForum_PostsCommentsAndUpvotes(t *testing.T) {
	ts := newTestServer(t)
	author := ts.createProfile(t, "writer@campus.edu", models.RoleStudent)
	reader := ts.createProfile(t, "reader@campus.edu", models.RoleStudent)
	authorToken, readerToken := ts.tokenFor(t, author), ts.tokenFor(t, reader)

	resp := ts.do(t, http.MethodPost, "/api/forum/posts", authorToken, forumPostRequest{
		Title: "Study group for algorithms", Content: "Meet Thursdays in the library",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decode[models.ForumPost](t, resp)

	upvote := fmt.Sprintf("/api/forum/posts/%d/upvote", post.ID)
	resp = ts.do(t, http.MethodPost, upvote, readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vote := decode[models.UpvoteResult](t, resp)
	assert.True(t, vote.Upvoted)
	assert.Equal(t, 1, vote.Upvotes)

	resp = ts.do(t, http.MethodPost, upvote, readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vote = decode[models.UpvoteResult](t, resp)
	assert.False(t, vote.Upvoted)
	assert.Equal(t, 0, vote.Upvotes)

	comments := fmt.Sprintf("/api/forum/posts/%d/comments", post.ID)
	resp = ts.do(t, http.MethodPost, comments, readerToken, commentRequest{Content: "Count me in"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/forum/posts/999/comments", readerToken, commentRequest{Content: "Hello?"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, comments, authorToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.ForumComment](t, resp), 1)

	resp = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/forum/posts/%d", post.ID), readerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/forum/posts/%d", post.ID), authorToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMessaging_Conversation(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createProfile(t, "alice@campus.edu", models.RoleStudent)
	bob := ts.createProfile(t, "bob@campus.edu", models.RoleStudent)
	eve := ts.createProfile(t, "eve@campus.edu", models.RoleStudent)
	aliceToken := ts.tokenFor(t, alice)

	resp := ts.do(t, http.MethodPost, "/api/conversations", aliceToken, startConversationRequest{ParticipantID: alice.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/conversations", aliceToken, startConversationRequest{ParticipantID: bob.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	conv := decode[models.Conversation](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/conversations", ts.tokenFor(t, bob), startConversationRequest{ParticipantID: alice.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, conv.ID, decode[models.Conversation](t, resp).ID)

	messages := fmt.Sprintf("/api/conversations/%d/messages", conv.ID)
	resp = ts.do(t, http.MethodPost, messages, aliceToken, sendMessageRequest{Content: "Lunch?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, messages, ts.tokenFor(t, eve), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, messages, ts.tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]models.Message](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, "Lunch?", got[0].Content)
}

func TestDashboardAndSearch(t *testing.T) {
	ts := newTestServer(t)
	faculty := ts.createProfile(t, "prof@campus.edu", models.RoleFaculty)
	student := ts.createProfile(t, "kid@campus.edu", models.RoleStudent)

	resp := ts.do(t, http.MethodPost, "/api/notices", ts.tokenFor(t, faculty), noticeRequest{
		Title: "Library hours extended", Content: "Open until midnight during exams",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/dashboard", ts.tokenFor(t, student), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decode[service.Dashboard](t, resp)
	assert.EqualValues(t, 1, dash.ActiveNotices)
	assert.Nil(t, dash.Students)

	resp = ts.do(t, http.MethodGet, "/api/dashboard", ts.tokenFor(t, faculty), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash = decode[service.Dashboard](t, resp)
	require.NotNil(t, dash.Students)
	assert.EqualValues(t, 1, *dash.Students)

	resp = ts.do(t, http.MethodGet, "/api/search?q=library", ts.tokenFor(t, student), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decode[search.Response](t, resp)
	assert.Equal(t, "database", found.Backend)
	require.NotEmpty(t, found.Results)
	assert.Equal(t, search.ResultNotice, found.Results[0].Type)

	resp = ts.do(t, http.MethodGet, "/api/search", ts.tokenFor(t, student), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStudents_CRUD(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createProfile(t, "registrar@campus.edu", models.RoleAdmin)
	faculty := ts.createProfile(t, "prof@campus.edu", models.RoleFaculty)
	peer := ts.createProfile(t, "peer@campus.edu", models.RoleStudent)
	adminToken := ts.tokenFor(t, admin)

	name := "Linus Student"
	number := "CS-2026-001"
	resp := ts.do(t, http.MethodPost, "/api/students", ts.tokenFor(t, peer), studentRequest{
		Email: "linus@campus.edu", FullName: &name, StudentNumber: &number,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/students", adminToken, studentRequest{
		Email: "linus@campus.edu", FullName: &name, StudentNumber: &number,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[createdStudent](t, resp)
	assert.NotEmpty(t, created.TemporaryPassword)
	require.NotNil(t, created.Profile)
	assert.Equal(t, models.RoleStudent, created.Profile.Role)

	path := fmt.Sprintf("/api/students/%d", created.Profile.ID)
	resp = ts.do(t, http.MethodGet, path, ts.tokenFor(t, faculty), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d", faculty.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "faculty are not students")

	year := 3
	resp = ts.do(t, http.MethodPatch, path, adminToken, studentRequest{YearOfStudy: &year})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decode[models.Profile](t, resp).YearOfStudy)

	resp = ts.do(t, http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, path, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvatarUpload(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProfile(t, "selfie@campus.edu", models.RoleStudent)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.PNG(t, 4, 4))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profiles/me/avatar", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.tokenFor(t, p))
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[models.Profile](t, resp).AvatarURL)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/profiles/%d/avatar", p.ID), "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "memory://")
}
