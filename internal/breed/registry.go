// Package breed maintains the controlled vocabulary moderators classify
// scans against: breed entries, their taxonomy enumerations, and ancestry
// edges between breeds.
package breed

import (
	"context"
	"log/slog"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
)

// Closed enumerations for breed taxonomy fields.
var (
	Species      = []string{"cow", "buffalo", "bison", "yak"}
	Statuses     = []string{"active", "endangered", "extinct", "unknown"}
	Temperaments = []string{"docile", "moderate", "aggressive", "unknown"}
	Conservation = []string{"least-concern", "vulnerable", "endangered", "critical", "unknown"}
)

const (
	cacheTTL     = 10 * time.Minute
	cachePurge   = 20 * time.Minute
	listCacheKey = "breeds:all"
)

// Registry provides validated access to the breed vocabulary with a
// short-TTL read cache in front of the record store.
type Registry struct {
	store  datastore.Interface
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewRegistry creates a breed registry over the given store.
func NewRegistry(store datastore.Interface) *Registry {
	return &Registry{
		store:  store,
		cache:  gocache.New(cacheTTL, cachePurge),
		logger: logging.ForService("breed"),
	}
}

// Validate checks the closed enumerations and numeric range invariants of a
// breed entry.
func Validate(breed *datastore.Breed) error {
	if breed.Name == "" {
		return errors.ValidationError("breed name must not be empty")
	}
	if err := validateEnum("species", breed.Species, Species); err != nil {
		return err
	}
	if err := validateEnum("status", breed.Status, Statuses); err != nil {
		return err
	}
	if err := validateEnum("temperament", breed.Temperament, Temperaments); err != nil {
		return err
	}
	if err := validateEnum("conservation", breed.Conservation, Conservation); err != nil {
		return err
	}
	if err := validateRange("milk yield", breed.MilkYieldMin, breed.MilkYieldMax); err != nil {
		return err
	}
	if err := validateRange("body weight", breed.BodyWeightMin, breed.BodyWeightMax); err != nil {
		return err
	}
	return nil
}

func validateEnum(field, value string, members []string) error {
	if value == "" {
		return nil
	}
	if !slices.Contains(members, value) {
		return errors.Newf("unknown %s value %q", field, value).
			Category(errors.CategoryValidation).
			Component("breed").
			Build()
	}
	return nil
}

func validateRange(field string, minVal, maxVal *float64) error {
	if minVal != nil && *minVal < 0 {
		return errors.Newf("%s minimum must not be negative", field).
			Category(errors.CategoryValidation).
			Component("breed").
			Build()
	}
	if minVal != nil && maxVal != nil && *minVal > *maxVal {
		return errors.Newf("%s minimum %v exceeds maximum %v", field, *minVal, *maxVal).
			Category(errors.CategoryValidation).
			Component("breed").
			Build()
	}
	return nil
}

// Save validates and persists a breed entry.
func (r *Registry) Save(ctx context.Context, breed *datastore.Breed) error {
	if err := Validate(breed); err != nil {
		return err
	}
	if err := r.store.SaveBreed(ctx, breed); err != nil {
		return err
	}

	r.cache.Delete(listCacheKey)
	r.cache.Set(breed.Name, *breed, gocache.DefaultExpiration)

	r.logger.Info("breed saved", "name", breed.Name, "species", breed.Species)
	return nil
}

// Get retrieves a breed by name, serving repeated lookups from cache.
func (r *Registry) Get(ctx context.Context, name string) (datastore.Breed, error) {
	if cached, found := r.cache.Get(name); found {
		if breed, ok := cached.(datastore.Breed); ok {
			return breed, nil
		}
	}

	breed, err := r.store.GetBreed(ctx, name)
	if err != nil {
		return datastore.Breed{}, err
	}

	r.cache.Set(name, breed, gocache.DefaultExpiration)
	return breed, nil
}

// List returns the full vocabulary ordered by name.
func (r *Registry) List(ctx context.Context) ([]datastore.Breed, error) {
	if cached, found := r.cache.Get(listCacheKey); found {
		if breeds, ok := cached.([]datastore.Breed); ok {
			return breeds, nil
		}
	}

	breeds, err := r.store.ListBreeds(ctx)
	if err != nil {
		return nil, err
	}

	r.cache.Set(listCacheKey, breeds, gocache.DefaultExpiration)
	return breeds, nil
}

// Known reports whether a breed name exists in the vocabulary.
func (r *Registry) Known(ctx context.Context, name string) (bool, error) {
	_, err := r.Get(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AddOrigin validates and persists an ancestry edge between two breeds.
func (r *Registry) AddOrigin(ctx context.Context, origin *datastore.BreedOrigin) error {
	if origin.BreedName == origin.ParentName {
		return errors.Newf("breed %q cannot be its own parent", origin.BreedName).
			Category(errors.CategoryValidation).
			Component("breed").
			Build()
	}
	if origin.Percentage != nil && (*origin.Percentage < 0 || *origin.Percentage > 100) {
		return errors.Newf("origin percentage %v out of range [0,100]", *origin.Percentage).
			Category(errors.CategoryValidation).
			Component("breed").
			Build()
	}

	for _, endpoint := range []string{origin.BreedName, origin.ParentName} {
		known, err := r.Known(ctx, endpoint)
		if err != nil {
			return err
		}
		if !known {
			return errors.Newf("origin endpoint %q is not a known breed", endpoint).
				Category(errors.CategoryValidation).
				Component("breed").
				Build()
		}
	}

	return r.store.SaveBreedOrigin(ctx, origin)
}

// Origins returns the ancestry edges of a breed.
func (r *Registry) Origins(ctx context.Context, name string) ([]datastore.BreedOrigin, error) {
	return r.store.BreedOrigins(ctx, name)
}
