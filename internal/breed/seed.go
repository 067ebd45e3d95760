// seed.go: YAML seed files for bulk-loading the breed vocabulary.
package breed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
)

// seedFile is the on-disk schema of a breed seed file.
type seedFile struct {
	Breeds []seedBreed `yaml:"breeds"`
}

type seedBreed struct {
	Name         string     `yaml:"name"`
	Species      string     `yaml:"species"`
	Status       string     `yaml:"status"`
	Temperament  string     `yaml:"temperament"`
	Conservation string     `yaml:"conservation"`
	MilkYield    *seedRange `yaml:"milk_yield"`
	BodyWeight   *seedRange `yaml:"body_weight"`
	Description  string     `yaml:"description"`
	ImageURL     string     `yaml:"image_url"`
	Origins      []struct {
		Parent     string   `yaml:"parent"`
		Percentage *float64 `yaml:"percentage"`
	} `yaml:"origins"`
}

type seedRange struct {
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
	Unit string   `yaml:"unit"`
}

// ImportSeed loads a YAML seed file into the vocabulary. Every entry is
// validated before anything is written; origins are inserted after all their
// endpoints exist.
func (r *Registry) ImportSeed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Newf("reading seed file %s: %w", path, err).
			Category(errors.CategoryFileIO).
			Component("breed").
			Build()
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, errors.Newf("parsing seed file %s: %w", path, err).
			Category(errors.CategoryFileParsing).
			Component("breed").
			Build()
	}

	breeds := make([]datastore.Breed, 0, len(seed.Breeds))
	for i := range seed.Breeds {
		entry := toBreed(&seed.Breeds[i])
		if err := Validate(&entry); err != nil {
			return 0, fmt.Errorf("seed entry %q: %w", seed.Breeds[i].Name, err)
		}
		breeds = append(breeds, entry)
	}

	for i := range breeds {
		if err := r.Save(ctx, &breeds[i]); err != nil {
			return 0, err
		}
	}

	for i := range seed.Breeds {
		for _, o := range seed.Breeds[i].Origins {
			origin := datastore.BreedOrigin{
				BreedName:  seed.Breeds[i].Name,
				ParentName: o.Parent,
				Percentage: o.Percentage,
			}
			if err := r.AddOrigin(ctx, &origin); err != nil {
				return 0, fmt.Errorf("seed origin %q -> %q: %w", origin.BreedName, origin.ParentName, err)
			}
		}
	}

	r.logger.Info("breed seed imported", "path", path, "breeds", len(breeds))
	return len(breeds), nil
}

// toBreed maps a seed entry onto the datastore model.
func toBreed(s *seedBreed) datastore.Breed {
	breed := datastore.Breed{
		Name:         s.Name,
		Species:      s.Species,
		Status:       s.Status,
		Temperament:  s.Temperament,
		Conservation: s.Conservation,
		Description:  s.Description,
		ImageURL:     s.ImageURL,
	}
	if s.MilkYield != nil {
		breed.MilkYieldMin = s.MilkYield.Min
		breed.MilkYieldMax = s.MilkYield.Max
		breed.MilkYieldUnit = s.MilkYield.Unit
	}
	if s.BodyWeight != nil {
		breed.BodyWeightMin = s.BodyWeight.Min
		breed.BodyWeightMax = s.BodyWeight.Max
		breed.BodyWeightUnit = s.BodyWeight.Unit
	}
	return breed
}
