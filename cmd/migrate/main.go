package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"train-station/internal/config"
	"train-station/internal/database"
	"train-station/internal/database/migrations"
	"train-station/internal/logger"
	"train-station/internal/user"
	userdb "train-station/internal/user/db"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		dir           = pflag.StringP("dir", "d", cfg.Database.MigrationsDir, "directory with SQL migrations")
		down          = pflag.Bool("down", false, "roll back all migrations")
		to            = pflag.Uint("to", 0, "migrate to this version instead of the latest")
		seed          = pflag.Bool("seed", false, "also load the reference data migrations")
		adminEmail    = pflag.String("admin-email", "", "create a staff user with this email")
		adminPassword = pflag.String("admin-password", "", "password for --admin-email")
	)
	pflag.Parse()
	if *adminEmail != "" && *down {
		fmt.Fprintln(os.Stderr, "--admin-email cannot be combined with --down")
		os.Exit(2)
	}

	log := logger.NewLogger(cfg.LogDir)
	defer log.Close()

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: *dir, SeedData: *seed}, log)
	if err := runner.Initialize(); err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Failed to initialize migrations: %v", err))
	}

	switch {
	case *down:
		err = runner.MigrateDown()
	case pflag.CommandLine.Changed("to"):
		err = runner.MigrateTo(*to)
	default:
		err = runner.RunMigrations()
	}
	if err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Migration failed: %v", err))
	}
	if *adminEmail != "" {
		users := user.NewUserService(&userdb.DB{Bun: bunDB}, nil, log)
		u, err := users.CreateStaff(ctx, *adminEmail, *adminPassword)
		if err != nil {
			log.Fatal("CLI", fmt.Sprintf("Failed to create staff user: %v", err))
		}
		log.Info("CLI", fmt.Sprintf("Staff user %d created", u.ID))
	}

	// Closing the migrator also closes the database handle.
	if err := runner.Close(); err != nil {
		log.Warn("MIGRATION", fmt.Sprintf("Failed to close migrator: %v", err))
	}
}
