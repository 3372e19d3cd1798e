package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateAll_BuiltIn(t *testing.T) {
	out, err := run(t, "all")
	require.NoError(t, err)
	assert.Contains(t, out, "9 rooms")
	assert.Contains(t, out, "is valid!")
}

func TestPath(t *testing.T) {
	out, err := run(t, "path", "Home", "Shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"go north", "go north"}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestPath_UnknownRoom(t *testing.T) {
	_, err := run(t, "path", "Home", "Castle")
	assert.ErrorContains(t, err, `unknown room "Castle"`)
}

func TestValidateAll_BadPersonas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`history_limit: 4
narrator:
  id: alex
  display_name: Alex
npcs:
  - id: villager
    display_name: Villager
    room: nowhere
`), 0o600))

	_, err := run(t, "all", "--personas", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation errors")
}

func TestGrid(t *testing.T) {
	out, err := run(t, "grid")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
