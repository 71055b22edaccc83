package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"be-guichet/internal/domain"
	"be-guichet/internal/repository"
	"be-guichet/internal/service"
	"be-guichet/pkg/database"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|reset|seed]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "drop":
		if err := db.Drop(ctx); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "reset":
		if err := db.Drop(ctx); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ Schema recreated successfully")

	case "seed":
		if err := seedData(ctx, db); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// seedData creates a demo event through the services so the catalog rules
// apply to it
func seedData(ctx context.Context, db *database.PostgresDB) error {
	store := repository.NewPostgresStore(db, 3*time.Second)
	services := service.NewServices(store, repository.NewPostgresSurveyRepository(db), zap.NewNop())

	start := time.Now().UTC().Truncate(24 * time.Hour).Add(7*24*time.Hour + 9*time.Hour)
	event, err := services.Catalog.CreateEvent(ctx, &domain.Event{
		Name:     "Forum de démonstration",
		Location: "Hall A",
		StartsAt: start,
		EndsAt:   start.Add(9 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("event: %w", err)
	}
	fmt.Printf("  Event: %s (%s)\n", event.Name, event.ID)

	activities := []*domain.Activity{
		{
			EventID:  event.ID,
			Name:     "Panel A",
			StartsAt: start,
			EndsAt:   start.Add(2 * time.Hour),
			Capacity: domain.IntPtr(3),
			Tiers: []domain.Tier{
				{Name: "Standard", Price: 1000, Capacity: domain.IntPtr(2)},
				{Name: "VIP", Price: 2000, Capacity: domain.IntPtr(1)},
			},
		},
		{
			EventID:  event.ID,
			Name:     "Atelier",
			StartsAt: start.Add(3 * time.Hour),
			EndsAt:   start.Add(5 * time.Hour),
			Tiers:    []domain.Tier{{Name: "Standard", Price: 300}},
		},
	}
	for _, a := range activities {
		created, err := services.Catalog.CreateActivity(ctx, a)
		if err != nil {
			return fmt.Errorf("activity %s: %w", a.Name, err)
		}
		fmt.Printf("  Activity: %s (%s)\n", created.Name, created.ID)
	}

	q, err := services.Surveys.CreateQuestion(ctx, "Comment avez-vous connu le forum ?",
		[]string{"Réseaux sociaux", "Bouche à oreille", "Affichage"})
	if err != nil {
		return fmt.Errorf("survey: %w", err)
	}
	fmt.Printf("  Survey question: %s (%s)\n", q.Label, q.ID)

	return nil
}
