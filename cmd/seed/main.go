// Command seed loads demo data: two users who are mutual friends and a
// batch of messages scattered around a base coordinate — some inside
// the nearby radius, some beyond it, one with no location at all — so
// the proximity endpoint has something to show immediately.
//
// It refuses to run against a database that already has users.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geonote/internal/config"
	"geonote/internal/db"
	"geonote/internal/models"
	"geonote/internal/observ"
	"geonote/internal/repository"
	"geonote/internal/repository/postgres"
	"geonote/internal/service"
)

// Harlem River intersection used throughout the demo data.
var basePoint = models.Point{Longitude: -73.935, Latitude: 40.823}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	users := postgres.NewUserStore(database.Pool())
	messages := service.NewMessageService(postgres.NewMessageStore(database.Pool()), nil, cfg.NearbyRadiusMeters, logger)

	existing, err := users.List(ctx)
	if err != nil {
		return fmt.Errorf("check existing users: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("database already seeded, nothing to do", zap.Int("users", len(existing)))
		return nil
	}

	alice, err := users.Create(ctx, repository.NewUser{Email: "alice@example.com", FirstName: "Alice", LastName: "Rivera"})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	bob, err := users.Create(ctx, repository.NewUser{Email: "bob@example.com", FirstName: "Bob", LastName: "Okafor"})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	for _, pair := range [][2]*uuid.UUID{{&alice.ID, &bob.ID}, {&bob.ID, &alice.ID}} {
		friends := []uuid.UUID{*pair[1]}
		if _, err := users.Update(ctx, *pair[0], repository.UserPatch{Friends: &friends}); err != nil {
			return fmt.Errorf("link friends: %w", err)
		}
	}

	// Offsets in degrees latitude; 0.0005° ≈ 55 m, so the first few land
	// inside the default 70 m radius and the rest stay out.
	seeds := []struct {
		subject string
		body    string
		offset  float64
		located bool
	}{
		{"Welcome", "You found the drop spot.", 0, true},
		{"", "Left this right where you stand.", 0.0002, true},
		{"Almost there", "About fifty meters north of you.", 0.0005, true},
		{"Too far", "This one should never show up nearby.", 0.05, true},
		{"No location", "A plain note with no coordinates.", 0, false},
	}

	for _, s := range seeds {
		nm := repository.NewMessage{
			Subject: s.subject,
			Body:    s.body,
			From:    alice.ID,
			To:      bob.ID,
		}
		if s.located {
			nm.Location = &models.Point{
				Longitude: basePoint.Longitude,
				Latitude:  basePoint.Latitude + s.offset,
			}
		}
		if _, err := messages.Create(ctx, nm); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
	}

	logger.Info("seeded demo data",
		zap.String("alice", alice.ID.String()),
		zap.String("bob", bob.ID.String()),
		zap.Int("messages", len(seeds)),
		zap.Float64("base_lon", basePoint.Longitude),
		zap.Float64("base_lat", basePoint.Latitude),
	)
	return nil
}
