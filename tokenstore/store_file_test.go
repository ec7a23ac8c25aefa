package tokenstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BikyaITI/bikya-go-client/identity"
	"github.com/BikyaITI/bikya-go-client/tokenstore"
)

func testTokens() *tokenstore.Tokens {
	return &tokenstore.Tokens{
		AccessToken:  "t1",
		RefreshToken: "r1",
		User: &identity.Identity{
			ID:       7,
			UserName: "jdoe",
			Email:    "jdoe@example.com",
			Roles:    identity.NewRoleSet(identity.RoleAdmin),
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := tokenstore.NewFileStore(path)

	require.NoError(t, store.Save(testTokens()))

	got, err := store.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "t1", got.AccessToken)
	require.Equal(t, "r1", got.RefreshToken)
	require.NotNil(t, got.User)
	require.Equal(t, int64(7), got.User.ID)
	require.True(t, got.User.IsAdmin())
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, tokenstore.NewFileStore(path).Save(testTokens()))

	got, err := tokenstore.NewFileStore(path).Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "t1", got.AccessToken)
}

func TestFileStoreGetEmpty(t *testing.T) {
	store := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	got, err := store.Get()
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := tokenstore.NewFileStore(path)

	require.NoError(t, store.Save(testTokens()))
	require.NoError(t, store.Clear())

	got, err := store.Get()
	require.NoError(t, err)
	require.Nil(t, got)

	// clearing an already empty store is a no-op
	require.NoError(t, store.Clear())
}

func TestFileStoreSaveReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := tokenstore.NewFileStore(path)

	require.NoError(t, store.Save(testTokens()))
	require.NoError(t, store.Save(&tokenstore.Tokens{AccessToken: "t2", RefreshToken: "r2"}))

	got, err := store.Get()
	require.NoError(t, err)
	require.Equal(t, "t2", got.AccessToken)
	require.Nil(t, got.User)
}
