package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/models"
)

func TestStoreSetAndGet(t *testing.T) {
	store := NewStore()
	require.False(t, store.Active())

	profile := models.UserProfile{ID: 7, Name: "Piyush", Rank: "Chief Engineer", ShipName: "MV Ocean Star"}
	require.NoError(t, store.Set("jwt-token", profile))
	require.True(t, store.Active())

	token, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)

	got, err := store.Profile()
	require.NoError(t, err)
	assert.Equal(t, profile, got)
}

func TestStoreEmptyReturnsErrNoSession(t *testing.T) {
	store := NewStore()

	_, err := store.Token()
	require.ErrorIs(t, err, ErrNoSession)

	_, err = store.Profile()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestStoreClearWipesBoth(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Set("tok", models.UserProfile{ID: 1, Name: "A"}))

	store.Clear()

	require.False(t, store.Active())
	_, err := store.Token()
	require.ErrorIs(t, err, ErrNoSession)
	_, err = store.Profile()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestStoreSetReplacesPreviousSession(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Set("first", models.UserProfile{ID: 1, Name: "A"}))
	require.NoError(t, store.Set("second", models.UserProfile{ID: 2, Name: "B"}))

	token, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	profile, err := store.Profile()
	require.NoError(t, err)
	assert.Equal(t, 2, profile.ID)
}
