// internal/api/moderation.go
package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/moderation"
)

// parseQuery builds a moderation query from the request's query string.
func parseQuery(ctx echo.Context) moderation.Query {
	q := moderation.Query{
		Submitter: ctx.QueryParam("submitter"),
		Breed:     ctx.QueryParam("breed"),
		Moderator: ctx.QueryParam("moderator"),
		Sort:      datastore.SortNewestFirst,
		Page:      1,
	}

	switch ctx.QueryParam("flag") {
	case "flagged":
		q.Flag = datastore.FlagFlagged
	case "unflagged":
		q.Flag = datastore.FlagUnflagged
	}

	switch ctx.QueryParam("helpful") {
	case "yes":
		q.Helpful = datastore.HelpfulYes
	case "no":
		q.Helpful = datastore.HelpfulNo
	}

	if ctx.QueryParam("sort") == "asc" {
		q.Sort = datastore.SortOldestFirst
	}

	if page, err := strconv.Atoi(ctx.QueryParam("page")); err == nil && page > 0 {
		q.Page = page
	}

	return q
}

// UnconfirmedScans returns one page of scans awaiting moderation.
func (c *Controller) UnconfirmedScans(ctx echo.Context) error {
	page, err := c.moderation.Unconfirmed(ctx.Request().Context(), parseQuery(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "failed to read unconfirmed scans", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, PaginatedResponse{
		Data:        page.Rows,
		Total:       page.Total,
		PageSize:    page.PageSize,
		CurrentPage: page.Page,
		TotalPages:  page.TotalPages,
	})
}

// ConfirmedBreeds returns one page of confirmed breed records.
func (c *Controller) ConfirmedBreeds(ctx echo.Context) error {
	page, err := c.moderation.Confirmed(ctx.Request().Context(), parseQuery(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "failed to read confirmed breeds", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, PaginatedResponse{
		Data:        page.Rows,
		Total:       page.Total,
		PageSize:    page.PageSize,
		CurrentPage: page.Page,
		TotalPages:  page.TotalPages,
	})
}

// ConfirmRequest is the body of a confirm operation.
type ConfirmRequest struct {
	ScanID uint   `json:"scan_id"`
	Breed  string `json:"breed"`
}

// ConfirmScan commits a moderator's breed assignment for a scan.
func (c *Controller) ConfirmScan(ctx echo.Context) error {
	moderator := ctx.Request().Header.Get(submitterHeader)
	if moderator == "" {
		return c.HandleError(ctx, nil, "login required", http.StatusUnauthorized)
	}

	var req ConfirmRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	record, err := c.moderation.Confirm(ctx.Request().Context(), req.ScanID, req.Breed, moderator)
	if err != nil {
		return c.HandleError(ctx, err, "failed to confirm scan", statusForError(err))
	}

	return ctx.JSON(http.StatusCreated, record)
}

// RevokeConfirmation deletes a confirmed breed record so its source scan
// reappears in the unconfirmed view.
func (c *Controller) RevokeConfirmation(ctx echo.Context) error {
	moderator := ctx.Request().Header.Get(submitterHeader)
	if moderator == "" {
		return c.HandleError(ctx, nil, "login required", http.StatusUnauthorized)
	}

	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid record id", http.StatusBadRequest)
	}

	if err := c.moderation.Revoke(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "failed to revoke confirmation", statusForError(err))
	}

	return ctx.NoContent(http.StatusNoContent)
}

// BulkImport accepts a breed name and a set of reference images and records
// one confirmed breed per image. The batch is all-or-nothing.
func (c *Controller) BulkImport(ctx echo.Context) error {
	moderator := ctx.Request().Header.Get(submitterHeader)
	if moderator == "" {
		return c.HandleError(ctx, nil, "login required", http.StatusUnauthorized)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "invalid multipart form", http.StatusBadRequest)
	}

	breedName := ctx.FormValue("breed")

	var images [][]byte
	for _, header := range form.File["images"] {
		if header.Size > maxUploadBytes {
			return c.HandleError(ctx, nil, "image too large", http.StatusRequestEntityTooLarge)
		}
		file, err := header.Open()
		if err != nil {
			return c.HandleError(ctx, err, "failed to read image", http.StatusBadRequest)
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		_ = file.Close()
		if err != nil {
			return c.HandleError(ctx, err, "failed to read image", http.StatusBadRequest)
		}
		images = append(images, data)
	}

	records, err := c.moderation.BulkImport(ctx.Request().Context(), breedName, images, moderator)
	if err != nil {
		return c.HandleError(ctx, err, "bulk import failed", statusForError(err))
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"breed":    breedName,
		"imported": len(records),
		"records":  records,
	})
}
