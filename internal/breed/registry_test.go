package breed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
)

// memStore keeps breeds and origins in maps, implementing just enough of
// datastore.Interface for the registry.
type memStore struct {
	datastore.Interface

	breeds    map[string]datastore.Breed
	origins   []datastore.BreedOrigin
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{breeds: map[string]datastore.Breed{}}
}

func (s *memStore) SaveBreed(ctx context.Context, breed *datastore.Breed) error {
	s.breeds[breed.Name] = *breed
	return nil
}

func (s *memStore) GetBreed(ctx context.Context, name string) (datastore.Breed, error) {
	b, ok := s.breeds[name]
	if !ok {
		return datastore.Breed{}, errors.Newf("breed %q not found", name).
			Category(errors.CategoryNotFound).Build()
	}
	return b, nil
}

func (s *memStore) ListBreeds(ctx context.Context) ([]datastore.Breed, error) {
	s.listCalls++
	out := make([]datastore.Breed, 0, len(s.breeds))
	for _, b := range s.breeds {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) SaveBreedOrigin(ctx context.Context, origin *datastore.BreedOrigin) error {
	s.origins = append(s.origins, *origin)
	return nil
}

func (s *memStore) BreedOrigins(ctx context.Context, breedName string) ([]datastore.BreedOrigin, error) {
	var out []datastore.BreedOrigin
	for _, o := range s.origins {
		if o.BreedName == breedName {
			out = append(out, o)
		}
	}
	return out, nil
}

func f(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		breed   datastore.Breed
		wantErr bool
	}{
		{"minimal valid", datastore.Breed{Name: "Gir"}, false},
		{"full valid", datastore.Breed{
			Name: "Gir", Species: "cow", Status: "active",
			Temperament: "docile", Conservation: "least-concern",
			MilkYieldMin: f(6), MilkYieldMax: f(10),
			BodyWeightMin: f(300), BodyWeightMax: f(400),
		}, false},
		{"empty enums allowed", datastore.Breed{Name: "Gir", Species: "", Status: ""}, false},
		{"empty name", datastore.Breed{}, true},
		{"unknown species", datastore.Breed{Name: "Gir", Species: "horse"}, true},
		{"unknown status", datastore.Breed{Name: "Gir", Status: "mythical"}, true},
		{"unknown temperament", datastore.Breed{Name: "Gir", Temperament: "feral"}, true},
		{"unknown conservation", datastore.Breed{Name: "Gir", Conservation: "doomed"}, true},
		{"inverted milk range", datastore.Breed{Name: "Gir", MilkYieldMin: f(10), MilkYieldMax: f(5)}, true},
		{"negative weight", datastore.Breed{Name: "Gir", BodyWeightMin: f(-1)}, true},
		{"min only", datastore.Breed{Name: "Gir", MilkYieldMin: f(5)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tt.breed)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	r := NewRegistry(store)

	err := r.Save(context.Background(), &datastore.Breed{Name: "Gir", Species: "horse"})
	require.Error(t, err)
	assert.Empty(t, store.breeds)
}

func TestKnown(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	r := NewRegistry(store)
	ctx := context.Background()

	known, err := r.Known(ctx, "Gir")
	require.NoError(t, err)
	assert.True(t, known)

	known, err = r.Known(ctx, "Unicorn")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestListIsCached(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	r := NewRegistry(store)
	ctx := context.Background()

	_, err := r.List(ctx)
	require.NoError(t, err)
	_, err = r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls, "second read served from cache")

	// Saving invalidates the list cache.
	require.NoError(t, r.Save(ctx, &datastore.Breed{Name: "Sahiwal"}))
	_, err = r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls)
}

func TestAddOrigin(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	store.breeds["Zebu"] = datastore.Breed{Name: "Zebu"}
	r := NewRegistry(store)
	ctx := context.Background()

	require.NoError(t, r.AddOrigin(ctx, &datastore.BreedOrigin{BreedName: "Gir", ParentName: "Zebu", Percentage: f(50)}))
	require.Len(t, store.origins, 1)

	err := r.AddOrigin(ctx, &datastore.BreedOrigin{BreedName: "Gir", ParentName: "Gir"})
	assert.True(t, errors.IsValidation(err), "self loop")

	err = r.AddOrigin(ctx, &datastore.BreedOrigin{BreedName: "Gir", ParentName: "Zebu", Percentage: f(150)})
	assert.True(t, errors.IsValidation(err), "percentage out of range")

	err = r.AddOrigin(ctx, &datastore.BreedOrigin{BreedName: "Gir", ParentName: "Unicorn"})
	assert.True(t, errors.IsValidation(err), "unknown endpoint")
}

const seedYAML = `breeds:
  - name: Gir
    species: cow
    status: active
    temperament: docile
    milk_yield:
      min: 6
      max: 10
      unit: l/day
    description: Indian dairy breed from Gujarat
  - name: Zebu
    species: cow
  - name: Girolando
    species: cow
    origins:
      - parent: Gir
        percentage: 62.5
`

func TestImportSeed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "breeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	store := newMemStore()
	r := NewRegistry(store)

	count, err := r.ImportSeed(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	gir := store.breeds["Gir"]
	assert.Equal(t, "docile", gir.Temperament)
	require.NotNil(t, gir.MilkYieldMin)
	assert.InDelta(t, 6, *gir.MilkYieldMin, 0.001)
	assert.Equal(t, "l/day", gir.MilkYieldUnit)

	require.Len(t, store.origins, 1)
	assert.Equal(t, "Girolando", store.origins[0].BreedName)
	assert.Equal(t, "Gir", store.origins[0].ParentName)
}

func TestImportSeedRejectsInvalidEntry(t *testing.T) {
	t.Parallel()

	bad := "breeds:\n  - name: Gir\n    species: horse\n"
	path := filepath.Join(t.TempDir(), "breeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	store := newMemStore()
	r := NewRegistry(store)

	_, err := r.ImportSeed(context.Background(), path)
	require.Error(t, err)
	assert.Empty(t, store.breeds, "nothing written when any entry is invalid")
}

func TestImportSeedMissingFile(t *testing.T) {
	t.Parallel()

	r := NewRegistry(newMemStore())
	_, err := r.ImportSeed(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}
