package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status]

import (
	"context"
	"flag"
	"log"
	"os"

	"resume-feedback/internal/shared/config"
	"resume-feedback/internal/shared/storage/db"
)

func main() {
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required")
		os.Exit(1)
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch command {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "status":
		var version int64
		version, err = db.MigrationVersion(ctx, sqlDB)
		if err == nil {
			log.Printf("schema version %d", version)
		}
	default:
		log.Printf("unknown command %q (want up, down or status)", command)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("migrate %s: %v", command, err)
		os.Exit(1)
	}
}
