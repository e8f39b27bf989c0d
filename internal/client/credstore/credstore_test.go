package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	c, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.Empty())

	want := Credential{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Save(ctx, Credential{AccessToken: "a2", RefreshToken: "r"}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)

	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Empty(t, got.RefreshToken)

	// clearing twice is fine
	require.NoError(t, s.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "nested", "creds.json")))
}

func TestFileStore_FileFormatAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save(context.Background(), Credential{AccessToken: "a", RefreshToken: "r"}))

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"a","refreshToken":"r"}`, string(bs))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}
