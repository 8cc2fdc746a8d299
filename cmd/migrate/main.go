package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"carelink-chat/config"
	"carelink-chat/internal/repository"
	"carelink-chat/pkg/database"
	"carelink-chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usage = `
CareLink Chat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply pending embedded SQL migrations
  status      Show applied and pending migrations
  seed        Upsert development directory rows (patients, mentors, accounts)
  purge       Delete published outbox events older than -older-than
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -yes         Skip the reset countdown
  -older-than  Outbox retention for purge (default OUTBOX_RETENTION)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed
  go run ./cmd/migrate purge -older-than 24h
  go run ./cmd/migrate reset -yes
`

func main() {
	yes := flag.Bool("yes", false, "Skip the reset countdown")
	olderThan := flag.Duration("older-than", 0, "Outbox retention for purge")
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	command := flag.Arg(0)

	cfg := config.LoadConfig()
	logger.SetGlobalLogger(logger.New(cfg.AppEnv))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer pool.Close()

	switch command {
	case "up":
		runMigrationsUp(ctx, pool)
	case "status":
		showStatus(ctx, pool)
	case "seed":
		runSeed(ctx, pool)
	case "purge":
		retention := *olderThan
		if retention <= 0 {
			retention = cfg.OutboxRetention
		}
		runPurge(ctx, pool, retention)
	case "reset":
		runReset(ctx, pool, *yes)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("🚀 Running migrations...")
	applied, err := database.ApplyMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	if len(applied) == 0 {
		log.Println("✅ Database is up to date")
		return
	}
	for _, name := range applied {
		log.Printf("   - applied %s", name)
	}
	log.Println("✅ Migrations completed!")
}

func showStatus(ctx context.Context, pool *pgxpool.Pool) {
	if err := database.HealthCheck(ctx, pool); err != nil {
		log.Fatalf("❌ Database unreachable: %v", err)
	}
	log.Println("✅ Database connection OK")

	names, err := database.MigrationNames()
	if err != nil {
		log.Fatalf("❌ Failed to list migrations: %v", err)
	}
	applied, err := database.AppliedMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("❌ Failed to read migration history: %v", err)
	}
	for _, name := range names {
		if at, ok := applied[name]; ok {
			log.Printf("   [x] %s (%s)", name, at.Format(time.RFC3339))
			continue
		}
		log.Printf("   [ ] %s", name)
	}
}

func runSeed(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("🌱 Seeding directory...")
	result, err := database.Seed(ctx, pool, database.DefaultSeedConfig())
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	log.Printf("   - Patients: %d", result.Patients)
	log.Printf("   - Mentors: %d", result.Mentors)
	log.Printf("   - Accounts: %d", result.Accounts)
	log.Println("✅ Seeding completed!")
}

func runPurge(ctx context.Context, pool *pgxpool.Pool, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	log.Printf("🧹 Purging outbox events published before %s...", cutoff.Format(time.RFC3339))
	n, err := repository.NewOutboxRepository(pool).PurgeCompleted(ctx, cutoff)
	if err != nil {
		log.Fatalf("❌ Purge failed: %v", err)
	}
	log.Printf("✅ Removed %d events", n)
}

func runReset(ctx context.Context, pool *pgxpool.Pool, skipCountdown bool) {
	log.Println("⚠️  WARNING: This will DROP all tables and re-run migrations!")
	if !skipCountdown {
		log.Println("⚠️  Press Ctrl+C within 5 seconds to cancel...")
		fmt.Print("Proceeding in: ")
		for i := 5; i > 0; i-- {
			fmt.Printf("%d... ", i)
			time.Sleep(time.Second)
		}
		fmt.Println()
	}

	log.Println("🗑️  Dropping all tables...")
	if err := database.DropAll(ctx, pool); err != nil {
		log.Fatalf("❌ Failed to drop tables: %v", err)
	}
	runMigrationsUp(ctx, pool)
	log.Println("✅ Database reset completed!")
}
