package seed

import (
	"context"
	"fmt"
	"log"

	"campusconnect/internal/database"
	"campusconnect/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Students    int
	Faculty     int
	Notices     int
	Events      int
	Posts       int
	ShouldClean bool
	Preset      string
	SkipBcrypt  bool
	DryRun      bool
	MaxDays     int
	RandSeed    int64
}

// Summary counts what a Seed run produced.
type Summary struct {
	Profiles      int
	Notices       int
	Events        int
	Registrations int
	Posts         int
	Conversations int
}

// DefaultOptions mirror the sizes used by `make seed`.
func DefaultOptions() Options {
	return Options{
		Students:   40,
		Faculty:    6,
		Notices:    25,
		Events:     12,
		Posts:      30,
		Preset:     DefaultPreset,
		SkipBcrypt: true,
		MaxDays:    60,
	}
}

// Seed populates the database with a demo campus.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	preset, err := LoadDepartments(opts.Preset)
	if err != nil {
		return nil, err
	}
	if opts.Students < 2 {
		return nil, fmt.Errorf("need at least 2 students, got %d", opts.Students)
	}
	if opts.Faculty < 1 {
		opts.Faculty = 1
	}

	log.Printf("🌱 Seeding %s: %d students, %d faculty, %d notices, %d events, %d posts",
		preset.Campus, opts.Students, opts.Faculty, opts.Notices, opts.Events, opts.Posts)

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			log.Printf("⚠️  Could not clear existing data: %v", err)
		}
	}

	f := NewFactory(db, preset, SeedOptions{
		DryRun:     opts.DryRun,
		SkipBcrypt: opts.SkipBcrypt,
		MaxDays:    opts.MaxDays,
		RandSeed:   opts.RandSeed,
	})
	summary := &Summary{}

	faculty := make([]*models.Profile, 0, opts.Faculty)
	for i := 0; i < opts.Faculty; i++ {
		p, err := f.CreateProfile(models.RoleFaculty)
		if err != nil {
			return summary, fmt.Errorf("create faculty: %w", err)
		}
		faculty = append(faculty, p)
	}
	students := make([]*models.Profile, 0, opts.Students)
	for i := 0; i < opts.Students; i++ {
		p, err := f.CreateProfile(models.RoleStudent)
		if err != nil {
			return summary, fmt.Errorf("create student: %w", err)
		}
		students = append(students, p)
	}
	summary.Profiles = len(faculty) + len(students)
	log.Printf("✓ %d profiles created", summary.Profiles)

	notices, err := f.CreateNotices(faculty, opts.Notices)
	if err != nil {
		return summary, fmt.Errorf("create notices: %w", err)
	}
	summary.Notices = len(notices)
	log.Printf("✓ %d notices created", summary.Notices)

	for i := 0; i < opts.Events; i++ {
		event, err := f.CreateEvent(faculty[i%len(faculty)])
		if err != nil {
			return summary, fmt.Errorf("create event: %w", err)
		}
		n, err := f.RegisterAttendees(ctx, event, students)
		if err != nil {
			return summary, fmt.Errorf("register attendees: %w", err)
		}
		summary.Events++
		summary.Registrations += n
	}
	log.Printf("✓ %d events created with %d registrations", summary.Events, summary.Registrations)

	members := append(append([]*models.Profile{}, students...), faculty...)
	for i := 0; i < opts.Posts; i++ {
		if _, err := f.CreatePost(ctx, members[f.rng.Intn(len(members))], members); err != nil {
			return summary, fmt.Errorf("create post: %w", err)
		}
		summary.Posts++
	}
	log.Printf("✓ %d forum posts created", summary.Posts)

	// Pair neighbouring students so every student has at least one thread.
	for i := 0; i+1 < len(students); i += 2 {
		if _, err := f.CreateConversation(ctx, students[i], students[i+1], 2+f.rng.Intn(6)); err != nil {
			return summary, fmt.Errorf("create conversation: %w", err)
		}
		summary.Conversations++
	}
	log.Printf("✓ %d conversations created", summary.Conversations)

	log.Println("🎉 Campus seeding completed")
	return summary, nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		sql := `TRUNCATE TABLE messages, conversation_participants, conversations, post_upvotes, forum_comments, forum_posts, event_attendees, events, notices, profiles RESTART IDENTITY CASCADE;`
		return db.Exec(sql).Error
	}
	all := database.PersistentModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
