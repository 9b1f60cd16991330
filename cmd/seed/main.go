// Command seed populates the database with a demo campus.
package main

import (
	"context"
	"flag"
	"log"

	"campusconnect/internal/bootstrap"
	"campusconnect/internal/config"
	"campusconnect/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	students := flag.Int("students", defaults.Students, "Number of students to create")
	faculty := flag.Int("faculty", defaults.Faculty, "Number of faculty to create")
	notices := flag.Int("notices", defaults.Notices, "Number of notices to publish")
	events := flag.Int("events", defaults.Events, "Number of events to schedule")
	posts := flag.Int("posts", defaults.Posts, "Number of forum posts to create")
	preset := flag.String("preset", defaults.Preset, "Department preset (default, small)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate records without writing them")
	slowHash := flag.Bool("bcrypt-each", false, "Hash every password separately")
	flag.Parse()

	log.Println("🌱 Campus Seeder")
	log.Println("================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedDepartments: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	opts := seed.Options{
		Students:    *students,
		Faculty:     *faculty,
		Notices:     *notices,
		Events:      *events,
		Posts:       *posts,
		Preset:      *preset,
		ShouldClean: *shouldClean,
		DryRun:      *dryRun,
		SkipBcrypt:  !*slowHash,
		MaxDays:     defaults.MaxDays,
	}
	summary, err := seed.Seed(context.Background(), db, opts)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Done: %d profiles, %d notices, %d events, %d posts, %d conversations",
		summary.Profiles, summary.Notices, summary.Events, summary.Posts, summary.Conversations)
	log.Printf("📧 All seeded accounts use the password: %s", seed.DemoPassword)
}
