package di

import (
	"fmt"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/config"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both SQLite databases and applies their
// schemas. On any failure the already opened databases are closed.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{log: log}

	// 1. errors.db - durable error archive and alert history
	errorsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/errors.db",
		Profile: database.ProfileDurable,
		Name:    "errors",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize errors database: %w", err)
	}
	container.ErrorsDB = errorsDB

	// 2. universe.db - symbol-set relationship index
	universeDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/universe.db",
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		errorsDB.Close()
		return nil, fmt.Errorf("failed to initialize universe database: %w", err)
	}
	container.UniverseDB = universeDB

	// Schemas are idempotent; applied on every startup
	for _, db := range []*database.DB{errorsDB, universeDB} {
		if err := db.Migrate(); err != nil {
			errorsDB.Close()
			universeDB.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")

	return container, nil
}
