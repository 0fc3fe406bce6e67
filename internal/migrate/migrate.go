package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bridgewise/backend/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// SourceURL turns a directory into a file:// source URL. URLs that already
// carry a scheme are returned unchanged.
func SourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// DatabaseURL maps the postgresql:// scheme accepted by pgx onto the
// postgres:// scheme the migrate driver is registered under.
func DatabaseURL(url string) string {
	if rest, ok := strings.CutPrefix(url, "postgresql://"); ok {
		return "postgres://" + rest
	}
	return url
}

// Up applies every pending migration from source to the database.
func Up(source, databaseURL string) error {
	m, err := migrate.New(SourceURL(source), DatabaseURL(databaseURL))
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("[Migrate] Failed to close migration handles", "source_err", srcErr, "db_err", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("[Migrate] Schema up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("[Migrate] Applied migrations", "version", version, "dirty", dirty)
	return nil
}
