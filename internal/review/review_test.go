package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cattle-scans/backend/internal/datastore"
	"github.com/cattle-scans/backend/internal/errors"
)

// updateStore implements datastore.Interface and applies partial updates to
// an in-memory scan state so commutativity can be observed.
type updateStore struct {
	datastore.Interface

	state   map[string]any
	updates int
	err     error
}

func newUpdateStore() *updateStore {
	return &updateStore{state: map[string]any{}}
}

func (s *updateStore) UpdateScan(ctx context.Context, id uint, fields map[string]any) error {
	if s.err != nil {
		return s.err
	}
	s.updates++
	for k, v := range fields {
		s.state[k] = v
	}
	return nil
}

func TestSetHelpfulness(t *testing.T) {
	t.Parallel()

	store := newUpdateStore()
	c := NewCoordinator(store)

	require.NoError(t, c.SetHelpfulness(context.Background(), 1, true, "user-1"))
	assert.Equal(t, true, store.state["helpful"])
}

func TestSetHelpfulnessIdempotent(t *testing.T) {
	t.Parallel()

	store := newUpdateStore()
	c := NewCoordinator(store)
	ctx := context.Background()

	require.NoError(t, c.SetHelpfulness(ctx, 1, true, "user-1"))
	once := map[string]any{}
	for k, v := range store.state {
		once[k] = v
	}

	require.NoError(t, c.SetHelpfulness(ctx, 1, true, "user-1"))
	assert.Equal(t, once, store.state, "repeating the same vote changes nothing")
}

func TestLoginRequired(t *testing.T) {
	t.Parallel()

	store := newUpdateStore()
	c := NewCoordinator(store)
	ctx := context.Background()

	err := c.SetHelpfulness(ctx, 1, true, "")
	require.Error(t, err)
	assert.True(t, errors.IsPrecondition(err))

	err = c.SetFlag(ctx, 1, true, "blurry", "")
	require.Error(t, err)
	assert.True(t, errors.IsPrecondition(err))

	assert.Zero(t, store.updates, "no silent no-op, no write either")
}

func TestSetFlagStoresReason(t *testing.T) {
	t.Parallel()

	store := newUpdateStore()
	c := NewCoordinator(store)

	require.NoError(t, c.SetFlag(context.Background(), 1, true, "wrong animal", "user-1"))
	assert.Equal(t, true, store.state["flagged"])
	assert.Equal(t, "wrong animal", store.state["flag_reason"])
}

func TestUnflagClearsReason(t *testing.T) {
	t.Parallel()

	store := newUpdateStore()
	c := NewCoordinator(store)
	ctx := context.Background()

	require.NoError(t, c.SetFlag(ctx, 1, true, "wrong animal", "user-1"))
	require.NoError(t, c.SetFlag(ctx, 1, false, "ignored", "user-1"))

	assert.Equal(t, false, store.state["flagged"])
	assert.Equal(t, "", store.state["flag_reason"])
}

func TestHelpfulnessAndFlagCommute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	a := newUpdateStore()
	ca := NewCoordinator(a)
	require.NoError(t, ca.SetHelpfulness(ctx, 1, true, "user-1"))
	require.NoError(t, ca.SetFlag(ctx, 1, true, "blurry", "user-1"))

	b := newUpdateStore()
	cb := NewCoordinator(b)
	require.NoError(t, cb.SetFlag(ctx, 1, true, "blurry", "user-1"))
	require.NoError(t, cb.SetHelpfulness(ctx, 1, true, "user-1"))

	assert.Equal(t, a.state, b.state, "order of the two updates does not matter")
}

func TestStoreErrorPropagates(t *testing.T) {
	t.Parallel()

	store := newUpdateStore()
	store.err = errors.Newf("scan 1 not found").Category(errors.CategoryNotFound).Build()
	c := NewCoordinator(store)

	err := c.SetHelpfulness(context.Background(), 1, true, "user-1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
