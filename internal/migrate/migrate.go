package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dir = "migrations"

// Up applies all pending migrations.
//
// It returns an error (no log.Fatal) so the caller can decide how to handle it.
func Up(dbURL string, log *slog.Logger) error {
	return run(dbURL, log, func(db *sql.DB) error { return goose.Up(db, dir) })
}

// Down rolls back the most recent migration.
func Down(dbURL string, log *slog.Logger) error {
	return run(dbURL, log, func(db *sql.DB) error { return goose.Down(db, dir) })
}

// Status logs the applied/pending state of every migration.
func Status(dbURL string, log *slog.Logger) error {
	return run(dbURL, log, func(db *sql.DB) error { return goose.Status(db, dir) })
}

func run(dbURL string, log *slog.Logger, fn func(db *sql.DB) error) error {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("migrations: open db: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("database close error", "err", err)
		}
	}()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}

	log.Info("running database migrations")
	if err := fn(db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("database migrations done")
	return nil
}
