// Package review lets end users attach a helpfulness signal or an
// inspection flag to a persisted scan. These are idempotent field-level
// updates, independent and commutative; applying helpfulness and flag in
// either order yields the same final scan state.
package review

import (
	"context"
	"log/slog"

	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
)

// Coordinator applies review updates to scans.
type Coordinator struct {
	store  datastore.Interface
	logger *slog.Logger
}

// NewCoordinator creates a review coordinator over the given store.
func NewCoordinator(store datastore.Interface) *Coordinator {
	return &Coordinator{
		store:  store,
		logger: logging.ForService("review"),
	}
}

// requireIdentity enforces the authenticated-submitter precondition.
func requireIdentity(identity string) error {
	if identity == "" {
		return errors.Newf("login required").
			Category(errors.CategoryPrecondition).
			Component("review").
			Build()
	}
	return nil
}

// SetHelpfulness records whether the submitter found the scan result
// helpful. Safe to repeat with the same value.
func (c *Coordinator) SetHelpfulness(ctx context.Context, scanID uint, helpful bool, identity string) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}

	if err := c.store.UpdateScan(ctx, scanID, map[string]any{
		"helpful": helpful,
	}); err != nil {
		return err
	}

	c.logger.Info("helpfulness updated",
		"scan_id", scanID,
		"helpful", helpful,
		"user", identity)
	return nil
}

// SetFlag marks or clears the inspection flag on a scan. Clearing the flag
// also clears any stored reason.
func (c *Coordinator) SetFlag(ctx context.Context, scanID uint, flagged bool, reason, identity string) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}

	fields := map[string]any{
		"flagged": flagged,
	}
	if flagged {
		fields["flag_reason"] = reason
	} else {
		fields["flag_reason"] = ""
	}

	if err := c.store.UpdateScan(ctx, scanID, fields); err != nil {
		return err
	}

	c.logger.Info("inspection flag updated",
		"scan_id", scanID,
		"flagged", flagged,
		"user", identity)
	return nil
}
