package main

// Delete résumés older than RETENTION_DAYS once and exit. Suitable for a cron
// job or scheduled Lambda when no long-running worker is deployed.

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"resume-feedback/internal/bootstrap"
	"resume-feedback/internal/shared/config"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.WithoutRouter())
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	deleted, err := app.Cleanup.Run(ctx)
	if err != nil {
		log.Printf("cleanup failed after %d deletions: %v", deleted, err)
		os.Exit(1)
	}
	log.Printf("cleanup removed %d resumes", deleted)
}
