package database

import (
	"context"
	"fmt"

	"carelink-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedConfig holds configuration for seeding the directory tables
type SeedConfig struct {
	Patients []SeedPerson
	Mentors  []SeedPerson
	Accounts []SeedPerson
}

type SeedPerson struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	AvatarURL string
}

// DefaultSeedConfig returns a small directory for local development
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		Patients: []SeedPerson{
			{ID: uuid.MustParse("11111111-1111-4111-8111-111111111111"), FirstName: "Pat", LastName: "Jordan"},
			{ID: uuid.MustParse("11111111-1111-4111-8111-111111111112"), FirstName: "Sam", LastName: "Rivera"},
		},
		Mentors: []SeedPerson{
			{ID: uuid.MustParse("22222222-2222-4222-8222-222222222221"), FirstName: "Morgan Lee"},
		},
		Accounts: []SeedPerson{
			{ID: uuid.MustParse("33333333-3333-4333-8333-333333333331"), FirstName: "Care Team"},
		},
	}
}

// SeedResult holds the number of rows written per table
type SeedResult struct {
	Patients int
	Mentors  int
	Accounts int
}

// Seed upserts directory rows so conversations can be exercised locally.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	log := logger.GetGlobalLogger()
	log.Infof("Starting directory seeding...")

	result := &SeedResult{}
	for _, p := range cfg.Patients {
		if _, err := pool.Exec(ctx, `INSERT INTO patients (id, first_name, last_name, avatar_url)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name`,
			p.ID, p.FirstName, p.LastName, p.AvatarURL); err != nil {
			return result, fmt.Errorf("seed patient %s: %w", p.ID, err)
		}
		result.Patients++
	}
	for _, m := range cfg.Mentors {
		if _, err := pool.Exec(ctx, `INSERT INTO mentors (id, full_name, avatar_url)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name`,
			m.ID, m.FirstName, m.AvatarURL); err != nil {
			return result, fmt.Errorf("seed mentor %s: %w", m.ID, err)
		}
		result.Mentors++
	}
	for _, a := range cfg.Accounts {
		if _, err := pool.Exec(ctx, `INSERT INTO accounts (id, display_name, avatar_url)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`,
			a.ID, a.FirstName, a.AvatarURL); err != nil {
			return result, fmt.Errorf("seed account %s: %w", a.ID, err)
		}
		result.Accounts++
	}

	log.Infof("Seeded %d patients, %d mentors, %d accounts", result.Patients, result.Mentors, result.Accounts)
	return result, nil
}
