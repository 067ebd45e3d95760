// breeds.go: breed vocabulary and ancestry edge persistence.
package datastore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cattle-scans/backend/internal/errors"
)

// SaveBreed creates or updates a breed vocabulary entry by name.
func (ds *DataStore) SaveBreed(ctx context.Context, breed *Breed) error {
	err := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(breed).Error
	if err != nil {
		return errors.Newf("saving breed %q: %w", breed.Name, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return nil
}

// GetBreed retrieves a breed by its unique name.
func (ds *DataStore) GetBreed(ctx context.Context, name string) (Breed, error) {
	var breed Breed
	err := ds.DB.WithContext(ctx).First(&breed, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Breed{}, errors.Newf("breed %q not found", name).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Build()
		}
		return Breed{}, errors.Newf("getting breed %q: %w", name, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return breed, nil
}

// ListBreeds returns the full breed vocabulary ordered by name.
func (ds *DataStore) ListBreeds(ctx context.Context) ([]Breed, error) {
	var breeds []Breed
	err := ds.DB.WithContext(ctx).Order("name ASC").Find(&breeds).Error
	if err != nil {
		return nil, errors.Newf("listing breeds: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return breeds, nil
}

// SaveBreedOrigin creates an ancestry edge. Both endpoints must already
// exist in the breed vocabulary; the registry validates that before calling.
func (ds *DataStore) SaveBreedOrigin(ctx context.Context, origin *BreedOrigin) error {
	err := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "breed_name"}, {Name: "parent_name"}},
			UpdateAll: true,
		}).
		Create(origin).Error
	if err != nil {
		return errors.Newf("saving breed origin %q -> %q: %w", origin.BreedName, origin.ParentName, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return nil
}

// BreedOrigins returns the ancestry edges of a breed.
func (ds *DataStore) BreedOrigins(ctx context.Context, breedName string) ([]BreedOrigin, error) {
	var origins []BreedOrigin
	err := ds.DB.WithContext(ctx).Where("breed_name = ?", breedName).Find(&origins).Error
	if err != nil {
		return nil, errors.Newf("listing origins for breed %q: %w", breedName, err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	return origins, nil
}
