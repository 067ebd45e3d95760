package moderation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cattle-scans/backend/internal/breed"
	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
)

// stubStore implements datastore.Interface with overridable behavior for
// the methods the engine touches.
type stubStore struct {
	datastore.Interface

	scans     map[uint]datastore.Scan
	breeds    map[string]datastore.Breed
	inserted  []datastore.ConfirmedBreed
	batches   int
	deleted   []uint
	listTotal int64
	listRows  []datastore.Scan
}

func newStubStore() *stubStore {
	return &stubStore{
		scans:  map[uint]datastore.Scan{},
		breeds: map[string]datastore.Breed{},
	}
}

func (s *stubStore) GetScan(ctx context.Context, id uint) (datastore.Scan, error) {
	scan, ok := s.scans[id]
	if !ok {
		return datastore.Scan{}, errors.Newf("scan %d not found", id).
			Category(errors.CategoryNotFound).Build()
	}
	return scan, nil
}

func (s *stubStore) GetBreed(ctx context.Context, name string) (datastore.Breed, error) {
	b, ok := s.breeds[name]
	if !ok {
		return datastore.Breed{}, errors.Newf("breed %q not found", name).
			Category(errors.CategoryNotFound).Build()
	}
	return b, nil
}

func (s *stubStore) UnconfirmedScans(ctx context.Context, filters datastore.ScanFilters, sort datastore.SortOrder, limit, offset int) ([]datastore.Scan, int64, error) {
	return s.listRows, s.listTotal, nil
}

func (s *stubStore) ConfirmedBreeds(ctx context.Context, filters datastore.ConfirmedFilters, sort datastore.SortOrder, limit, offset int) ([]datastore.ConfirmedBreed, int64, error) {
	return nil, s.listTotal, nil
}

func (s *stubStore) InsertConfirmedBreed(ctx context.Context, record *datastore.ConfirmedBreed) error {
	record.ID = uint(len(s.inserted) + 1)
	s.inserted = append(s.inserted, *record)
	return nil
}

func (s *stubStore) InsertConfirmedBreeds(ctx context.Context, records []datastore.ConfirmedBreed) error {
	s.batches++
	s.inserted = append(s.inserted, records...)
	return nil
}

func (s *stubStore) DeleteConfirmedBreed(ctx context.Context, id uint) error {
	s.deleted = append(s.deleted, id)
	return nil
}

// stubArtifacts fails the nth upload (1-based), zero means never.
type stubArtifacts struct {
	failAt  int
	uploads int
}

func (s *stubArtifacts) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.uploads++
	if s.failAt != 0 && s.uploads == s.failAt {
		return "", errors.Newf("upload rejected").
			Category(errors.CategoryImageStore).Build()
	}
	return "https://cdn.example.com/" + key, nil
}

func (s *stubArtifacts) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func (s *stubArtifacts) Delete(ctx context.Context, key string) error { return nil }

func newTestEngine(store *stubStore, artifacts *stubArtifacts) *Engine {
	return NewEngine(store, breed.NewRegistry(store), artifacts, Config{PageSize: 2, KeyPrefix: "ref"}, nil)
}

func TestUnconfirmedPageMath(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.listTotal = 5
	engine := newTestEngine(store, &stubArtifacts{})

	page, err := engine.Unconfirmed(context.Background(), Query{Page: 2})
	require.NoError(t, err)

	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, 3, page.TotalPages, "ceil(5/2)")
}

func TestPageDefaultsToFirst(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(newStubStore(), &stubArtifacts{})

	page, err := engine.Unconfirmed(context.Background(), Query{Page: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Zero(t, page.TotalPages)
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.scans[7] = datastore.Scan{ID: 7, ImageURL: "https://cdn.example.com/scans/7.jpg"}
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	engine := newTestEngine(store, &stubArtifacts{})

	record, err := engine.Confirm(context.Background(), 7, "Gir", "mod-1")
	require.NoError(t, err)

	require.NotNil(t, record.ScanID)
	assert.EqualValues(t, 7, *record.ScanID)
	assert.Equal(t, "https://cdn.example.com/scans/7.jpg", record.ImageURL, "image URL copied from the scan")
	assert.Equal(t, "Gir", record.BreedName)
	assert.Equal(t, "mod-1", record.ModeratorID)
	require.Len(t, store.inserted, 1)
}

func TestConfirmPreconditions(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.scans[7] = datastore.Scan{ID: 7}
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	engine := newTestEngine(store, &stubArtifacts{})
	ctx := context.Background()

	_, err := engine.Confirm(ctx, 7, "", "mod-1")
	require.Error(t, err)
	assert.True(t, errors.IsPrecondition(err), "empty breed selection")

	_, err = engine.Confirm(ctx, 7, "Gir", "")
	require.Error(t, err)
	assert.True(t, errors.IsPrecondition(err), "missing moderator identity")

	_, err = engine.Confirm(ctx, 7, "Unicorn", "mod-1")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err), "unknown breed")

	_, err = engine.Confirm(ctx, 99, "Gir", "mod-1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "missing scan")

	assert.Empty(t, store.inserted)
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	engine := newTestEngine(store, &stubArtifacts{})

	require.NoError(t, engine.Revoke(context.Background(), 11))
	assert.Equal(t, []uint{11}, store.deleted)
}

func TestBulkImport(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	artifacts := &stubArtifacts{}
	engine := newTestEngine(store, artifacts)

	images := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	records, err := engine.BulkImport(context.Background(), "Gir", images, "mod-1")
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, 3, artifacts.uploads)
	assert.Equal(t, 1, store.batches, "all records inserted in one batch")
	for _, record := range records {
		assert.Nil(t, record.ScanID)
		assert.Equal(t, "Gir", record.BreedName)
		assert.Equal(t, "mod-1", record.ModeratorID)
		assert.Contains(t, record.ImageURL, "https://cdn.example.com/ref/")
	}
}

func TestBulkImportFailFast(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	artifacts := &stubArtifacts{failAt: 2}
	engine := newTestEngine(store, artifacts)

	images := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	_, err := engine.BulkImport(context.Background(), "Gir", images, "mod-1")
	require.Error(t, err)

	assert.Equal(t, 2, artifacts.uploads, "aborts at the failing upload")
	assert.Empty(t, store.inserted, "no partial commit")
	assert.Zero(t, store.batches)
}

func TestBulkImportValidation(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.breeds["Gir"] = datastore.Breed{Name: "Gir"}
	engine := newTestEngine(store, &stubArtifacts{})
	ctx := context.Background()
	images := [][]byte{[]byte("a")}

	_, err := engine.BulkImport(ctx, "", images, "mod-1")
	assert.True(t, errors.IsPrecondition(err))

	_, err = engine.BulkImport(ctx, "Gir", images, "")
	assert.True(t, errors.IsPrecondition(err))

	_, err = engine.BulkImport(ctx, "Gir", nil, "mod-1")
	assert.True(t, errors.IsValidation(err))

	_, err = engine.BulkImport(ctx, "Unicorn", images, "mod-1")
	assert.True(t, errors.IsValidation(err))
}
