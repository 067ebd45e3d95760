package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/cattle-scans/backend/internal/conf"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// dsn builds the connection string. clientFoundRows makes the server report
// matched rows instead of changed rows, so repeating an identical partial
// update is not mistaken for a missing record.
func (store *MySQLStore) dsn() string {
	settings := store.Settings.Output.MySQL

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		settings.Username, settings.Password,
		settings.Host, settings.Port,
		settings.Database)
}

// Open sets up the MySQL database connection and runs migrations.
func (store *MySQLStore) Open() error {
	settings := store.Settings.Output.MySQL
	dsn := store.dsn()

	newLogger := createGormLogger()

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		logger.Error("Failed to open MySQL database",
			"host", settings.Host,
			"port", settings.Port,
			"database", settings.Database,
			"error", err)
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	connectionInfo := fmt.Sprintf("%s@%s:%s/%s", settings.Username, settings.Host, settings.Port, settings.Database)
	return performAutoMigration(db, store.Settings.Debug, "MySQL", connectionInfo)
}

// Close MySQL database connections
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return nil
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying MySQL connection: %w", err)
	}

	return sqlDB.Close()
}
