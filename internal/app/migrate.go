package app

import (
	"errors"

	"btc-event-study/internal/storage"
)

// Migrate applies the embedded schema migrations.
func (a *App) Migrate() error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn is required to run migrations")
	}
	if err := storage.Migrate(a.Config.Database.DSN); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema is up to date")
	return nil
}
