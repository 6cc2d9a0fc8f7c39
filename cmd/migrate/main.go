// Command migrate applies database migrations. Direction is given as the
// first argument: "up" (default) or "down".
package main

import (
	"errors"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/solvieth/verslun-api/internal/config"
	"github.com/solvieth/verslun-api/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "migrate").Logger()

	direction := "up"
	if len(os.Args) > 1 {
		direction = strings.ToLower(strings.TrimSpace(os.Args[1]))
	}

	m, err := migrate.New("file://"+cfg.MigrationsDir, databaseURL(cfg.DatabaseURL))
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrations")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Error().Err(srcErr).Msg("close migration source")
		}
		if dbErr != nil {
			logger.Error().Err(dbErr).Msg("close migration database")
		}
	}()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		logger.Fatal().Str("direction", direction).Msg("unknown direction, want up or down")
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("database already up to date")
			return
		}
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	logger.Info().Str("direction", direction).Msg("migrations applied")
}

// databaseURL rewrites the postgres scheme to select the pgx driver.
func databaseURL(raw string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(raw, prefix) {
			return "pgx5://" + strings.TrimPrefix(raw, prefix)
		}
	}
	return raw
}
