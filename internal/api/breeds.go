// internal/api/breeds.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cattle-scans/backend/internal/datastore"
)

// ListBreeds returns the full breed vocabulary, ordered by name.
func (c *Controller) ListBreeds(ctx echo.Context) error {
	breeds, err := c.breeds.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to list breeds", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, breeds)
}

// GetBreed returns one breed by name.
func (c *Controller) GetBreed(ctx echo.Context) error {
	b, err := c.breeds.Get(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return c.HandleError(ctx, err, "failed to get breed", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, b)
}

// CreateBreed validates and stores a breed vocabulary entry. An existing
// entry with the same name is overwritten.
func (c *Controller) CreateBreed(ctx echo.Context) error {
	moderator := ctx.Request().Header.Get(submitterHeader)
	if moderator == "" {
		return c.HandleError(ctx, nil, "login required", http.StatusUnauthorized)
	}

	var b datastore.Breed
	if err := ctx.Bind(&b); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	if err := c.breeds.Save(ctx.Request().Context(), &b); err != nil {
		return c.HandleError(ctx, err, "failed to save breed", statusForError(err))
	}

	return ctx.JSON(http.StatusCreated, b)
}

// BreedOrigins returns the ancestry edges of a breed.
func (c *Controller) BreedOrigins(ctx echo.Context) error {
	origins, err := c.breeds.Origins(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return c.HandleError(ctx, err, "failed to get breed origins", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, origins)
}
