package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLifecycle(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nested", "device-id"))

	_, err := f.Get()
	assert.ErrorIs(t, err, ErrNoIdentity)

	require.NoError(t, f.Set("lobby-tv"))
	id, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, "lobby-tv", id)

	require.NoError(t, f.Clear())
	_, err = f.Get()
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.NoError(t, f.Clear(), "clearing twice is fine")
}

func TestFileRejectsEmptyID(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "device-id"))
	assert.Error(t, f.Set("   "))
}

func TestFileBlankContentIsNoIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-id")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	_, err := NewFile(path).Get()
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestEnsure(t *testing.T) {
	t.Run("generates and persists", func(t *testing.T) {
		f := NewFile(filepath.Join(t.TempDir(), "device-id"))
		id, err := Ensure(f, "")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, "screen-"))

		again, err := Ensure(f, "")
		require.NoError(t, err)
		assert.Equal(t, id, again)
	})

	t.Run("requested id wins", func(t *testing.T) {
		f := NewFile(filepath.Join(t.TempDir(), "device-id"))
		require.NoError(t, f.Set("old"))

		id, err := Ensure(f, "new")
		require.NoError(t, err)
		assert.Equal(t, "new", id)

		stored, err := f.Get()
		require.NoError(t, err)
		assert.Equal(t, "new", stored)
	})
}
