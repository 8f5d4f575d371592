// Command astaauth-migrate applies or rolls back the users schema.
//
//	astaauth-migrate -command up
//	astaauth-migrate -command status
//	astaauth-migrate -command down -target 0
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/projectatlas/astaauth/internal/logger"
	"github.com/projectatlas/astaauth/store/postgres"
)

func main() {
	var (
		command = flag.String("command", "up", "migration command: up, status or down")
		target  = flag.Int64("target", 0, "version to roll back to with down; 0 rolls back one step")
		dsn     = flag.String("dsn", "", "postgres dsn; defaults to DATABASE_URL")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	log := logger.New(logger.Config{Level: os.Getenv("LOG_LEVEL"), Format: logger.FormatConsole}, "astaauth-migrate")

	runner, err := postgres.NewRunner(*dsn, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *command {
	case "up":
		err = runner.Up(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", *command)
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Str("command", *command).Msg("migration failed")
		os.Exit(1)
	}
}
