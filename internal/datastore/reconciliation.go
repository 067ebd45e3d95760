// reconciliation.go: paged, filtered reads backing the moderation views and
// the confirmed breed record operations.
package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/cattle-scans/backend/internal/errors"
)

// orderClause maps a sort order to a stable ORDER BY with an id tiebreak so
// pagination never duplicates or drops rows on equal timestamps.
func orderClause(sort SortOrder) string {
	if sort == SortOldestFirst {
		return "created_at ASC, id ASC"
	}
	return "created_at DESC, id DESC"
}

// applyScanFilters narrows a scans query by the requested filter axes.
func applyScanFilters(query *gorm.DB, filters ScanFilters) *gorm.DB {
	switch filters.Flag {
	case FlagFlagged:
		query = query.Where("flagged = ?", true)
	case FlagUnflagged:
		query = query.Where("flagged = ?", false)
	case FlagAny:
	}

	switch filters.Helpful {
	case HelpfulYes:
		query = query.Where("helpful = ?", true)
	case HelpfulNo:
		query = query.Where("helpful = ?", false)
	case HelpfulAny:
	}

	if filters.Submitter != "" {
		query = query.Where("submitter_id = ?", filters.Submitter)
	}

	return query
}

// UnconfirmedScans returns one page of scans that have no confirmed breed
// record, along with the total number of matching rows. The exclusion is a
// database-side anti-join so the unconfirmed view never races a full
// confirmed-list read.
func (ds *DataStore) UnconfirmedScans(ctx context.Context, filters ScanFilters, sort SortOrder, limit, offset int) ([]Scan, int64, error) {
	query := ds.DB.WithContext(ctx).Model(&Scan{}).
		Where("NOT EXISTS (SELECT 1 FROM confirmed_breeds WHERE confirmed_breeds.scan_id = scans.id)")
	query = applyScanFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Newf("counting unconfirmed scans: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	var scans []Scan
	err := query.
		Order(orderClause(sort)).
		Limit(limit).
		Offset(offset).
		Preload("Predictions", func(db *gorm.DB) *gorm.DB {
			return db.Order("predictions.rank ASC")
		}).
		Find(&scans).Error
	if err != nil {
		return nil, 0, errors.Newf("querying unconfirmed scans: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	return scans, total, nil
}

// ConfirmedBreeds returns one page of confirmed breed records with the total
// number of matching rows.
func (ds *DataStore) ConfirmedBreeds(ctx context.Context, filters ConfirmedFilters, sort SortOrder, limit, offset int) ([]ConfirmedBreed, int64, error) {
	query := ds.DB.WithContext(ctx).Model(&ConfirmedBreed{})

	if filters.Breed != "" {
		query = query.Where("breed_name = ?", filters.Breed)
	}
	if filters.Moderator != "" {
		query = query.Where("moderator_id = ?", filters.Moderator)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Newf("counting confirmed breeds: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	var records []ConfirmedBreed
	err := query.
		Order(orderClause(sort)).
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, errors.Newf("querying confirmed breeds: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	return records, total, nil
}

// GetConfirmedBreed retrieves a single confirmed breed record.
func (ds *DataStore) GetConfirmedBreed(ctx context.Context, id uint) (ConfirmedBreed, error) {
	var record ConfirmedBreed
	err := ds.DB.WithContext(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ConfirmedBreed{}, errors.Newf("confirmed breed %d not found", id).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Build()
		}
		return ConfirmedBreed{}, errors.Newf("getting confirmed breed %d: %w", id, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return record, nil
}

// InsertConfirmedBreed creates a single confirmed breed record. A second
// confirmation of the same scan violates the unique scan index and surfaces
// as a conflict.
func (ds *DataStore) InsertConfirmedBreed(ctx context.Context, record *ConfirmedBreed) error {
	if err := ds.DB.WithContext(ctx).Create(record).Error; err != nil {
		return confirmInsertError(err)
	}
	return nil
}

// InsertConfirmedBreeds creates a batch of confirmed breed records in a
// single transaction; either all rows are inserted or none are.
func (ds *DataStore) InsertConfirmedBreeds(ctx context.Context, records []ConfirmedBreed) error {
	if len(records) == 0 {
		return nil
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			if err := tx.Create(&records[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return confirmInsertError(err)
	}
	return nil
}

// DeleteConfirmedBreed removes a confirmed breed record, reopening its
// source scan in the unconfirmed view on the next read.
func (ds *DataStore) DeleteConfirmedBreed(ctx context.Context, id uint) error {
	result := ds.DB.WithContext(ctx).Delete(&ConfirmedBreed{}, id)
	if result.Error != nil {
		return errors.Newf("deleting confirmed breed %d: %w", id, result.Error).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("confirmed breed %d not found", id).
			Category(errors.CategoryNotFound).
			Component("datastore").
			Build()
	}
	return nil
}

// confirmInsertError classifies a confirmed breed insert failure.
func confirmInsertError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Newf("scan already has a confirmed breed: %w", err).
			Category(errors.CategoryConflict).
			Component("datastore").
			Build()
	}
	return errors.Newf("inserting confirmed breed: %w", err).
		Category(errors.CategoryDatabase).
		Component("datastore").
		Build()
}
