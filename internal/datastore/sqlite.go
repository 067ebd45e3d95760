package datastore

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cattle-scans/backend/internal/conf"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and runs migrations.
func (store *SQLiteStore) Open() error {
	absoluteFilePath, err := filepath.Abs(store.Settings.Output.SQLite.Path)
	if err != nil {
		return fmt.Errorf("resolving SQLite path: %w", err)
	}

	newLogger := createGormLogger()

	db, err := gorm.Open(sqlite.Open(absoluteFilePath), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", absoluteFilePath)
}

func (store *SQLiteStore) Close() error {
	// SQLite needs no explicit teardown, connections close with the process.
	return nil
}
