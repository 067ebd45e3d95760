// internal/api/api.go
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cattle-scans/backend/internal/breed"
	"github.com/cattle-scans/backend/internal/conf"
	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
	"github.com/cattle-scans/backend/internal/moderation"
	"github.com/cattle-scans/backend/internal/observability"
	"github.com/cattle-scans/backend/internal/pipeline"
	"github.com/cattle-scans/backend/internal/review"
)

// submitterHeader carries the authenticated identity forwarded by the edge
// proxy. An empty or missing header means an anonymous request.
const submitterHeader = "X-Submitter-Id"

// maxUploadBytes caps a single image payload.
const maxUploadBytes = 20 << 20

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	pipelineDeps pipeline.Deps
	reviews      *review.Coordinator
	moderation   *moderation.Engine
	breeds       *breed.Registry
	metrics      *observability.Metrics

	apiLogger *slog.Logger
}

// New creates the API controller and registers all routes under /api/v2.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	deps pipeline.Deps, reviews *review.Coordinator, mod *moderation.Engine,
	breeds *breed.Registry, metrics *observability.Metrics) *Controller {

	c := &Controller{
		Echo:         e,
		DS:           ds,
		Settings:     settings,
		pipelineDeps: deps,
		reviews:      reviews,
		moderation:   mod,
		breeds:       breeds,
		metrics:      metrics,
		apiLogger:    logging.ForService("api"),
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(middleware.Recover())
	c.Group.Use(c.LoggingMiddleware())

	c.initRoutes()

	// Operational endpoints live outside the versioned group.
	e.GET("/healthz", c.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.POST("/scans", c.CreateScan)
	c.Group.GET("/scans/:id", c.GetScan)
	c.Group.POST("/scans/:id/helpful", c.SetHelpfulness)
	c.Group.POST("/scans/:id/flag", c.SetFlag)

	c.Group.GET("/moderation/unconfirmed", c.UnconfirmedScans)
	c.Group.GET("/moderation/confirmed", c.ConfirmedBreeds)
	c.Group.POST("/moderation/confirm", c.ConfirmScan)
	c.Group.DELETE("/moderation/confirmed/:id", c.RevokeConfirmation)
	c.Group.POST("/moderation/import", c.BulkImport)

	c.Group.GET("/breeds", c.ListBreeds)
	c.Group.POST("/breeds", c.CreateBreed)
	c.Group.GET("/breeds/:name", c.GetBreed)
	c.Group.GET("/breeds/:name/origins", c.BreedOrigins)
}

// HealthCheck reports liveness.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// LoggingMiddleware logs every API request through the structured logger.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID produces a short random id for error tracking.
func generateCorrelationID() string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.apiLogger.Error("API Error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorResp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, errorResp)
}

// statusForError maps error categories onto HTTP status codes. Stage
// failures keep their upstream flavor so the client can present
// stage-specific guidance.
func statusForError(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsPrecondition(err):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryConflict):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryInference):
		return http.StatusBadGateway
	case errors.IsCategory(err, errors.CategoryImageStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PaginatedResponse wraps one page of rows for list endpoints.
type PaginatedResponse struct {
	Data        any   `json:"data"`
	Total       int64 `json:"total"`
	PageSize    int   `json:"page_size"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
}
