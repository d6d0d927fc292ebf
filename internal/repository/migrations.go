package repository

import (
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
)

// RunMigrations applies pending goose migrations from the migrations
// directory
func (r *PostgresRepository) RunMigrations() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		migrationsDir = "/app/migrations"
	}

	if err := goose.Up(r.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
