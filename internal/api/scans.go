// internal/api/scans.go
package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cattle-scans/backend/internal/pipeline"
)

// ScanResponse is the JSON shape of a completed submission.
type ScanResponse struct {
	ScanID             uint    `json:"scan_id"`
	ImageURL           string  `json:"image_url"`
	HeadlineLabel      string  `json:"headline_label"`
	HeadlineConfidence float64 `json:"headline_confidence"`
}

// CreateScan accepts a multipart image upload and runs it through the
// submission pipeline. The submitter identity is optional.
func (c *Controller) CreateScan(ctx echo.Context) error {
	image, err := c.readImage(ctx, "image")
	if err != nil {
		return c.HandleError(ctx, err, "invalid image upload", http.StatusBadRequest)
	}

	submitter := ctx.Request().Header.Get(submitterHeader)

	p := pipeline.New(c.pipelineDeps)
	result, err := p.Submit(ctx.Request().Context(), image, submitter)
	if err != nil {
		return c.HandleError(ctx, err, stageMessage(err), statusForError(err))
	}

	return ctx.JSON(http.StatusCreated, ScanResponse{
		ScanID:             result.ScanID,
		ImageURL:           result.ImageURL,
		HeadlineLabel:      result.Headline.Label,
		HeadlineConfidence: result.Headline.Confidence,
	})
}

// stageMessage picks the user-facing summary for a pipeline failure.
func stageMessage(err error) string {
	switch pipeline.StageOf(err) {
	case pipeline.StageInference:
		return "scan failed"
	case pipeline.StageUpload:
		return "upload failed"
	case pipeline.StagePersistence:
		return "save failed"
	default:
		return "submission failed"
	}
}

// GetScan returns a single scan with its prediction list.
func (c *Controller) GetScan(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid scan id", http.StatusBadRequest)
	}

	scan, err := c.DS.GetScan(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "failed to get scan", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, scan)
}

// HelpfulnessRequest is the body of a helpfulness vote.
type HelpfulnessRequest struct {
	Helpful bool `json:"helpful"`
}

// SetHelpfulness records whether the headline prediction was helpful.
// Requires an authenticated submitter identity.
func (c *Controller) SetHelpfulness(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid scan id", http.StatusBadRequest)
	}

	identity := ctx.Request().Header.Get(submitterHeader)
	if identity == "" {
		return c.HandleError(ctx, nil, "login required", http.StatusUnauthorized)
	}

	var req HelpfulnessRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	if err := c.reviews.SetHelpfulness(ctx.Request().Context(), id, req.Helpful, identity); err != nil {
		return c.HandleError(ctx, err, "failed to record helpfulness", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, map[string]any{"scan_id": id, "helpful": req.Helpful})
}

// FlagRequest is the body of an inspection-flag decision.
type FlagRequest struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason,omitempty"`
}

// SetFlag marks or unmarks a scan for inspection. Requires an authenticated
// submitter identity.
func (c *Controller) SetFlag(ctx echo.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid scan id", http.StatusBadRequest)
	}

	identity := ctx.Request().Header.Get(submitterHeader)
	if identity == "" {
		return c.HandleError(ctx, nil, "login required", http.StatusUnauthorized)
	}

	var req FlagRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	if err := c.reviews.SetFlag(ctx.Request().Context(), id, req.Flagged, req.Reason, identity); err != nil {
		return c.HandleError(ctx, err, "failed to record flag", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, map[string]any{"scan_id": id, "flagged": req.Flagged})
}

// readImage extracts one uploaded file from the multipart form.
func (c *Controller) readImage(ctx echo.Context, field string) ([]byte, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		return nil, err
	}
	if header.Size > maxUploadBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return io.ReadAll(io.LimitReader(file, maxUploadBytes))
}

// parseID parses a positive decimal path parameter.
func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
