package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/lumen/internal/identity"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	identityPath = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestWhoamiAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-id")

	_, err := execute(t, "whoami", "--identity-file", path)
	assert.Error(t, err)

	require.NoError(t, identity.NewFile(path).Set("screen-lobby"))

	out, err := execute(t, "whoami", "--identity-file", path)
	require.NoError(t, err)
	assert.Equal(t, "screen-lobby", strings.TrimSpace(out))

	out, err = execute(t, "reset", "--identity-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "identity cleared")

	_, err = identity.NewFile(path).Get()
	assert.ErrorIs(t, err, identity.ErrNoIdentity)
}
