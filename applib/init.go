package applib

import (
	"log/slog"

	"github.com/tomyedwab/opecstate/database"
)

// Init binds the database named by cfg and builds the application around
// it. Nothing touches storage until InitDB or the first request.
func Init(cfg *Config, logger *slog.Logger) (*Application, error) {
	db := database.Open(cfg.Target,
		database.WithLogger(logger),
		database.WithRequiredModels(cfg.Models...),
		database.WithMaxOpenConns(cfg.MaxOpenConns),
	)
	app, err := NewApplication(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}
