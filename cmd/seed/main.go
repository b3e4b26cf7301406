// Command main runs the database seeder for fixmystuff.
package main

import (
	"context"
	"flag"
	"log"

	"fixmystuff/internal/bootstrap"
	"fixmystuff/internal/config"
	"fixmystuff/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numFixes := flag.Int("fixes", 60, "Number of fix requests to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a seeder preset (minimal, demo, load)")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 uses the clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	if *preset != "" {
		log.Printf("Applying preset: %s (ignoring -users and -fixes)\n", *preset)
	} else {
		log.Printf("Target: %d users, %d fixes, clean=%v\n", *numUsers, *numFixes, *shouldClean)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{
		NumUsers:   *numUsers,
		NumFixes:   *numFixes,
		DryRun:     *dryRun,
		RandomSeed: *randomSeed,
	})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	var res *seed.Result
	if *preset != "" {
		res, err = s.ApplyPreset(ctx, *preset)
	} else {
		res, err = s.Run(ctx)
	}
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! Created %d users and %d fixes.", len(res.Users), len(res.Fixes))
	log.Printf("📧 All test users have the password: %s", seed.DefaultPassword)
}
