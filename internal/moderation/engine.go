// Package moderation implements the reconciliation engine: paginated,
// filtered views of unconfirmed scans and confirmed breed records, the
// confirm/revoke operations, and the bulk reference import. Every read is a
// pure function of an explicit, serializable query value; the engine holds
// no per-session state.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cattle-scans/backend/internal/artifact"
	"github.com/cattle-scans/backend/internal/breed"
	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
	"github.com/cattle-scans/backend/internal/observability"
)

// Query describes one paged read of a moderation view. The zero value is
// the first page of the unfiltered view, newest first.
type Query struct {
	Flag      datastore.FlagFilter    `json:"flag"`
	Helpful   datastore.HelpfulFilter `json:"helpful"`
	Submitter string                  `json:"submitter,omitempty"`
	Breed     string                  `json:"breed,omitempty"`     // confirmed view only
	Moderator string                  `json:"moderator,omitempty"` // confirmed view only
	Sort      datastore.SortOrder     `json:"sort,omitempty"`
	Page      int                     `json:"page"` // 1-indexed
}

// Page is one page of a moderation view together with the pagination
// bookkeeping the caller needs.
type Page[T any] struct {
	Rows       []T   `json:"rows"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// Engine computes the reconciliation views and commits confirmations.
type Engine struct {
	store     datastore.Interface
	breeds    *breed.Registry
	artifacts artifact.Store
	pageSize  int
	keyPrefix string
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Config holds engine construction parameters.
type Config struct {
	PageSize  int
	KeyPrefix string
}

// NewEngine creates a moderation engine. metrics may be nil.
func NewEngine(store datastore.Interface, breeds *breed.Registry, artifacts artifact.Store, cfg Config, metrics *observability.Metrics) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 8
	}
	return &Engine{
		store:     store,
		breeds:    breeds,
		artifacts: artifacts,
		pageSize:  cfg.PageSize,
		keyPrefix: cfg.KeyPrefix,
		metrics:   metrics,
		logger:    logging.ForService("moderation"),
	}
}

// PageSize returns the fixed page size of the views.
func (e *Engine) PageSize() int {
	return e.pageSize
}

// normalizePage clamps the requested page and derives the offset.
func (e *Engine) normalizePage(page int) (normalized, offset int) {
	if page < 1 {
		page = 1
	}
	return page, (page - 1) * e.pageSize
}

// totalPages computes ceil(total / pageSize).
func (e *Engine) totalPages(total int64) int {
	return int((total + int64(e.pageSize) - 1) / int64(e.pageSize))
}

// Unconfirmed returns one page of scans that have no confirmed breed record
// at the time of read.
func (e *Engine) Unconfirmed(ctx context.Context, q Query) (Page[datastore.Scan], error) {
	page, offset := e.normalizePage(q.Page)

	filters := datastore.ScanFilters{
		Flag:      q.Flag,
		Helpful:   q.Helpful,
		Submitter: q.Submitter,
	}

	rows, total, err := e.store.UnconfirmedScans(ctx, filters, q.Sort, e.pageSize, offset)
	if err != nil {
		return Page[datastore.Scan]{}, err
	}

	e.metrics.RecordModerationRead("unconfirmed")

	return Page[datastore.Scan]{
		Rows:       rows,
		Total:      total,
		Page:       page,
		PageSize:   e.pageSize,
		TotalPages: e.totalPages(total),
	}, nil
}

// Confirmed returns one page of confirmed breed records.
func (e *Engine) Confirmed(ctx context.Context, q Query) (Page[datastore.ConfirmedBreed], error) {
	page, offset := e.normalizePage(q.Page)

	filters := datastore.ConfirmedFilters{
		Breed:     q.Breed,
		Moderator: q.Moderator,
	}

	rows, total, err := e.store.ConfirmedBreeds(ctx, filters, q.Sort, e.pageSize, offset)
	if err != nil {
		return Page[datastore.ConfirmedBreed]{}, err
	}

	e.metrics.RecordModerationRead("confirmed")

	return Page[datastore.ConfirmedBreed]{
		Rows:       rows,
		Total:      total,
		Page:       page,
		PageSize:   e.pageSize,
		TotalPages: e.totalPages(total),
	}, nil
}

// Confirm commits a moderator's breed assignment for a scan. The scan stops
// appearing in the unconfirmed view from the next read on; a second confirm
// of the same scan is a conflict.
func (e *Engine) Confirm(ctx context.Context, scanID uint, breedName, moderatorID string) (datastore.ConfirmedBreed, error) {
	if breedName == "" {
		return datastore.ConfirmedBreed{}, errors.Newf("select a breed before confirming").
			Category(errors.CategoryPrecondition).
			Component("moderation").
			Build()
	}
	if moderatorID == "" {
		return datastore.ConfirmedBreed{}, errors.Newf("login required").
			Category(errors.CategoryPrecondition).
			Component("moderation").
			Build()
	}

	known, err := e.breeds.Known(ctx, breedName)
	if err != nil {
		return datastore.ConfirmedBreed{}, err
	}
	if !known {
		return datastore.ConfirmedBreed{}, errors.Newf("unknown breed %q", breedName).
			Category(errors.CategoryValidation).
			Component("moderation").
			Build()
	}

	scan, err := e.store.GetScan(ctx, scanID)
	if err != nil {
		return datastore.ConfirmedBreed{}, err
	}

	record := datastore.ConfirmedBreed{
		ScanID:      &scan.ID,
		ImageURL:    scan.ImageURL,
		BreedName:   breedName,
		ModeratorID: moderatorID,
	}
	if err := e.store.InsertConfirmedBreed(ctx, &record); err != nil {
		return datastore.ConfirmedBreed{}, err
	}

	e.metrics.RecordConfirmation()

	e.logger.Info("scan confirmed",
		"scan_id", scanID,
		"breed", breedName,
		"moderator", moderatorID)

	return record, nil
}

// Revoke deletes a confirmed breed record; its source scan reappears in the
// unconfirmed view on the next read.
func (e *Engine) Revoke(ctx context.Context, confirmedID uint) error {
	if err := e.store.DeleteConfirmedBreed(ctx, confirmedID); err != nil {
		return err
	}

	e.metrics.RecordRevocation()

	e.logger.Info("confirmation revoked", "confirmed_id", confirmedID)
	return nil
}

// BulkImport uploads a set of reference images for a breed and records one
// confirmed breed per image, all attributed to the same moderator. Every
// upload must succeed before any record is inserted; a single upload
// failure aborts the whole batch with nothing committed.
func (e *Engine) BulkImport(ctx context.Context, breedName string, images [][]byte, moderatorID string) ([]datastore.ConfirmedBreed, error) {
	if breedName == "" {
		return nil, errors.Newf("select a breed before importing").
			Category(errors.CategoryPrecondition).
			Component("moderation").
			Build()
	}
	if moderatorID == "" {
		return nil, errors.Newf("login required").
			Category(errors.CategoryPrecondition).
			Component("moderation").
			Build()
	}
	if len(images) == 0 {
		return nil, errors.Newf("no images to import").
			Category(errors.CategoryValidation).
			Component("moderation").
			Build()
	}

	known, err := e.breeds.Known(ctx, breedName)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, errors.Newf("unknown breed %q", breedName).
			Category(errors.CategoryValidation).
			Component("moderation").
			Build()
	}

	// Upload phase, fail-fast. No record is inserted until every image is
	// durably stored.
	urls := make([]string, len(images))
	for i, image := range images {
		key := artifact.ScanKey(e.keyPrefix, time.Now())
		url, err := e.artifacts.Upload(ctx, key, image, "image/jpeg")
		if err != nil {
			return nil, fmt.Errorf("bulk import aborted at image %d of %d: %w", i+1, len(images), err)
		}
		urls[i] = url
	}

	records := make([]datastore.ConfirmedBreed, len(urls))
	for i, url := range urls {
		records[i] = datastore.ConfirmedBreed{
			ImageURL:    url,
			BreedName:   breedName,
			ModeratorID: moderatorID,
		}
	}

	if err := e.store.InsertConfirmedBreeds(ctx, records); err != nil {
		return nil, err
	}

	e.logger.Info("bulk import complete",
		"breed", breedName,
		"images", len(images),
		"moderator", moderatorID)

	return records, nil
}
