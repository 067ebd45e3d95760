// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cattle-scans/backend/internal/conf"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
)

// Package-level logger specific to the datastore service
var logger *slog.Logger

func init() {
	logger = logging.ForService("datastore")
}

// SortOrder selects the creation-timestamp sort direction of a paged read.
type SortOrder string

const (
	SortNewestFirst SortOrder = "desc"
	SortOldestFirst SortOrder = "asc"
)

// FlagFilter narrows a scan query by inspection-flag state.
type FlagFilter int

const (
	FlagAny FlagFilter = iota
	FlagFlagged
	FlagUnflagged
)

// HelpfulFilter narrows a scan query by helpfulness state.
type HelpfulFilter int

const (
	HelpfulAny HelpfulFilter = iota
	HelpfulYes
	HelpfulNo
)

// ScanFilters are the filter axes of the unconfirmed reconciliation view.
type ScanFilters struct {
	Flag      FlagFilter
	Helpful   HelpfulFilter
	Submitter string // exact match, empty = all
}

// ConfirmedFilters are the filter axes of the confirmed reconciliation view.
type ConfirmedFilters struct {
	Breed     string // exact match, empty = all
	Moderator string // exact match, empty = all
}

// Interface abstracts the underlying database implementation and defines the
// operations the rest of the application performs against the record store.
type Interface interface {
	Open() error
	Close() error

	// Scans
	SaveScan(ctx context.Context, scan *Scan, predictions []Prediction) error
	GetScan(ctx context.Context, id uint) (Scan, error)
	UpdateScan(ctx context.Context, id uint, fields map[string]any) error
	DeleteScan(ctx context.Context, id uint) error

	// Reconciliation views
	UnconfirmedScans(ctx context.Context, filters ScanFilters, sort SortOrder, limit, offset int) ([]Scan, int64, error)
	ConfirmedBreeds(ctx context.Context, filters ConfirmedFilters, sort SortOrder, limit, offset int) ([]ConfirmedBreed, int64, error)

	// Confirmed breed records
	GetConfirmedBreed(ctx context.Context, id uint) (ConfirmedBreed, error)
	InsertConfirmedBreed(ctx context.Context, record *ConfirmedBreed) error
	InsertConfirmedBreeds(ctx context.Context, records []ConfirmedBreed) error
	DeleteConfirmedBreed(ctx context.Context, id uint) error

	// Breed vocabulary
	SaveBreed(ctx context.Context, breed *Breed) error
	GetBreed(ctx context.Context, name string) (Breed, error)
	ListBreeds(ctx context.Context) ([]Breed, error)
	SaveBreedOrigin(ctx context.Context, origin *BreedOrigin) error
	BreedOrigins(ctx context.Context, breedName string) ([]BreedOrigin, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Scan{}, &Prediction{}, &Breed{}, &BreedOrigin{}, &ConfirmedBreed{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", dbType, err).
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}

	if debug {
		logger.Debug("database migration completed", "db_type", dbType, "connection", connectionInfo)
	}

	return nil
}

// SaveScan stores a scan and its prediction list as a single transaction.
func (ds *DataStore) SaveScan(ctx context.Context, scan *Scan, predictions []Prediction) error {
	if len(predictions) == 0 {
		return errors.Newf("scan must carry at least one prediction").
			Category(errors.CategoryValidation).
			Component("datastore").
			Build()
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scan).Error; err != nil {
			return fmt.Errorf("saving scan: %w", err)
		}

		for i := range predictions {
			predictions[i].ScanID = scan.ID
			if err := tx.Create(&predictions[i]).Error; err != nil {
				return fmt.Errorf("saving prediction: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("operation", "save_scan").
			Build()
	}
	return nil
}

// GetScan retrieves a scan with its ranked predictions.
func (ds *DataStore) GetScan(ctx context.Context, id uint) (Scan, error) {
	var scan Scan
	err := ds.DB.WithContext(ctx).
		Preload("Predictions", func(db *gorm.DB) *gorm.DB {
			return db.Order("predictions.rank ASC")
		}).
		First(&scan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Scan{}, errors.Newf("scan %d not found", id).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Build()
		}
		return Scan{}, errors.Newf("getting scan %d: %w", id, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return scan, nil
}

// UpdateScan applies a partial field update to a scan.
func (ds *DataStore) UpdateScan(ctx context.Context, id uint, fields map[string]any) error {
	result := ds.DB.WithContext(ctx).Model(&Scan{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return errors.Newf("updating scan %d: %w", id, result.Error).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("scan %d not found", id).
			Category(errors.CategoryNotFound).
			Component("datastore").
			Build()
	}
	return nil
}

// DeleteScan removes a scan and its predictions. Administrative side action,
// not used by the core pipeline.
func (ds *DataStore) DeleteScan(ctx context.Context, id uint) error {
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_id = ?", id).Delete(&Prediction{}).Error; err != nil {
			return fmt.Errorf("deleting predictions: %w", err)
		}
		if err := tx.Delete(&Scan{}, id).Error; err != nil {
			return fmt.Errorf("deleting scan: %w", err)
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("operation", "delete_scan").
			Build()
	}
	return nil
}
