// Package seed provides helpers to create demo data for the campus
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Campus-Demo-2026!"

// SeedOptions tunes how the factory builds records.
type SeedOptions struct {
	// DryRun builds records without writing them.
	DryRun bool
	// SkipBcrypt stores a precomputed hash instead of hashing per profile.
	SkipBcrypt bool
	// MaxDays bounds how far back generated timestamps reach.
	MaxDays int
	// RandSeed makes generated content reproducible when non-zero.
	RandSeed int64
}

// Factory builds campus entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   SeedOptions
	preset *Preset
	faker  *gofakeit.Faker
	rng    *rand.Rand
	hash   string
	// synthetic ID counter when running in DryRun mode
	nextID uint

	events   repository.EventRepository
	forum    repository.ForumRepository
	messages repository.MessageRepository
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, preset *Preset, opts SeedOptions) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 60
	}
	f := &Factory{
		db:     db,
		opts:   opts,
		preset: preset,
		faker:  gofakeit.New(seed),
		rng:    rand.New(rand.NewSource(seed)),
		nextID: 1000,
	}
	if db != nil {
		f.events = repository.NewEventRepository(db)
		f.forum = repository.NewForumRepository(db)
		f.messages = repository.NewMessageRepository(db)
	}
	return f
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return "", err
	}
	// One hash serves every profile in fast mode.
	if f.opts.SkipBcrypt {
		f.hash = hash
	}
	return hash, nil
}

func (f *Factory) department() Department {
	return f.preset.Departments[f.rng.Intn(len(f.preset.Departments))]
}

func (f *Factory) pick(items []string) string {
	return items[f.rng.Intn(len(items))]
}

// pastTime returns a timestamp within the last MaxDays.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.rng.Intn(f.opts.MaxDays*24*60)) * time.Minute
	return time.Now().Add(-back).UTC()
}

func (f *Factory) assignID(id *uint) {
	f.nextID++
	*id = f.nextID
}

// BuildProfile constructs an unsaved profile for role.
func (f *Factory) BuildProfile(role models.Role) *models.Profile {
	first, last := f.faker.FirstName(), f.faker.LastName()
	dept := f.department()
	p := &models.Profile{
		FullName:   first + " " + last,
		Email:      strings.ToLower(fmt.Sprintf("%s.%s%d@%s", first, last, f.rng.Intn(1000), f.preset.EmailDomain)),
		Role:       role,
		Department: dept.Name,
		Bio:        f.faker.Sentence(12),
	}
	if role == models.RoleStudent {
		number := fmt.Sprintf("%s-%d-%04d", dept.Code, time.Now().Year()-f.rng.Intn(4), f.rng.Intn(10000))
		p.StudentNumber = &number
		p.YearOfStudy = 1 + f.rng.Intn(4)
	}
	return p
}

// CreateProfile persists a generated profile. Optional overrides run before saving.
func (f *Factory) CreateProfile(role models.Role, overrides ...func(*models.Profile)) (*models.Profile, error) {
	p := f.BuildProfile(role)
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	p.Password = hash
	for _, override := range overrides {
		override(p)
	}

	if f.opts.DryRun {
		f.assignID(&p.ID)
		return p, nil
	}
	if err := f.db.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// BuildNotice constructs an unsaved notice by author.
func (f *Factory) BuildNotice(author *models.Profile) *models.Notice {
	dept := f.department()
	category := f.pick(models.NoticeCategories)
	n := &models.Notice{
		Title:       fmt.Sprintf("%s: %s", dept.Code, f.faker.Sentence(6)),
		Content:     f.faker.Paragraph(2, 4, 12, "\n\n"),
		Category:    category,
		Priority:    models.PriorityNormal,
		AuthorID:    author.ID,
		PublishedAt: f.pastTime(),
	}
	switch category {
	case models.NoticeUrgent:
		n.Priority = models.PriorityHigh
		n.Pinned = true
	case models.NoticeExam:
		n.Priority = models.PriorityHigh
	}
	// Roughly one in five notices targets staff only.
	if f.rng.Intn(5) == 0 {
		n.Audience = models.JoinAudience([]models.Role{models.RoleFaculty, models.RoleAdmin})
	}
	// Some notices have already lapsed.
	if f.rng.Intn(4) == 0 {
		expires := n.PublishedAt.Add(time.Duration(1+f.rng.Intn(7)) * 24 * time.Hour)
		n.ExpiresAt = &expires
	}
	return n
}

// CreateNotices persists count notices spread across authors in one batch.
func (f *Factory) CreateNotices(authors []*models.Profile, count int) ([]*models.Notice, error) {
	notices := make([]*models.Notice, 0, count)
	for i := 0; i < count; i++ {
		notices = append(notices, f.BuildNotice(authors[i%len(authors)]))
	}
	if len(notices) == 0 {
		return notices, nil
	}
	if f.opts.DryRun {
		for _, n := range notices {
			f.assignID(&n.ID)
		}
		log.Printf("[dry-run] CreateNotices: %d notices (no DB write)", len(notices))
		return notices, nil
	}
	return notices, f.db.Create(&notices).Error
}

// BuildEvent constructs an unsaved event organized by organizer. Events are
// spread from two weeks ago to six weeks ahead.
func (f *Factory) BuildEvent(organizer *models.Profile) *models.Event {
	dept := f.department()
	course := f.pick(dept.Courses)
	offset := time.Duration(f.rng.Intn(56*24)-14*24) * time.Hour
	start := time.Now().Add(offset).Truncate(time.Hour).UTC()

	capacity := 0
	if f.rng.Intn(3) > 0 {
		capacity = 10 * (1 + f.rng.Intn(10))
	}
	return &models.Event{
		Title:       fmt.Sprintf("%s %s", course, f.pick([]string{"Workshop", "Seminar", "Study Session", "Guest Lecture", "Review"})),
		Description: f.faker.Paragraph(1, 3, 14, "\n"),
		Location:    f.pick(f.preset.Venues),
		Category:    strings.ToLower(dept.Code),
		StartsAt:    start,
		EndsAt:      start.Add(time.Duration(1+f.rng.Intn(3)) * time.Hour),
		Capacity:    capacity,
		OrganizerID: organizer.ID,
	}
}

// CreateEvent persists a generated event.
func (f *Factory) CreateEvent(organizer *models.Profile) (*models.Event, error) {
	e := f.BuildEvent(organizer)
	if f.opts.DryRun {
		f.assignID(&e.ID)
		return e, nil
	}
	if err := f.db.Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// RegisterAttendees signs up a random subset of students, respecting capacity.
// Past events are skipped.
func (f *Factory) RegisterAttendees(ctx context.Context, event *models.Event, students []*models.Profile) (int, error) {
	if f.opts.DryRun || !event.EndsAt.After(time.Now()) {
		return 0, nil
	}
	registered := 0
	for _, i := range f.rng.Perm(len(students)) {
		if f.rng.Intn(2) == 0 {
			continue
		}
		_, err := f.events.Register(ctx, event.ID, students[i].ID, time.Now())
		if err != nil {
			if isConflict(err) {
				break
			}
			return registered, err
		}
		registered++
	}
	return registered, nil
}

// CreatePost persists a forum thread with comments and upvotes from members.
func (f *Factory) CreatePost(ctx context.Context, author *models.Profile, members []*models.Profile) (*models.ForumPost, error) {
	post := &models.ForumPost{
		Title:    strings.TrimSuffix(f.faker.Question(), "?") + "?",
		Content:  f.faker.Paragraph(1, 4, 14, "\n\n"),
		Category: f.pick(f.preset.ForumCategories),
		AuthorID: author.ID,
	}
	post.CreatedAt = f.pastTime()
	if f.opts.DryRun {
		f.assignID(&post.ID)
		return post, nil
	}
	if err := f.forum.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	for _, i := range f.rng.Perm(len(members))[:f.rng.Intn(len(members)+1)] {
		m := members[i]
		if f.rng.Intn(3) == 0 {
			if err := f.forum.CreateComment(ctx, &models.ForumComment{
				PostID:   post.ID,
				AuthorID: m.ID,
				Content:  f.faker.Sentence(10 + f.rng.Intn(15)),
			}); err != nil {
				return nil, err
			}
		}
		if m.ID != author.ID {
			if _, err := f.forum.ToggleUpvote(ctx, post.ID, m.ID); err != nil {
				return nil, err
			}
		}
	}
	return post, nil
}

// CreateConversation opens a direct thread between a and b with a few messages.
func (f *Factory) CreateConversation(ctx context.Context, a, b *models.Profile, messages int) (*models.Conversation, error) {
	if f.opts.DryRun {
		conv := &models.Conversation{}
		f.assignID(&conv.ID)
		return conv, nil
	}
	conv, _, err := f.messages.GetOrCreateDirect(ctx, a.ID, b.ID)
	if err != nil {
		return nil, err
	}
	for i := 0; i < messages; i++ {
		sender := a
		if i%2 == 1 {
			sender = b
		}
		if err := f.messages.CreateMessage(ctx, &models.Message{
			ConversationID: conv.ID,
			SenderID:       sender.ID,
			Content:        f.faker.Sentence(4 + f.rng.Intn(12)),
		}); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

func isConflict(err error) bool {
	return models.StatusFor(err) == 409
}
