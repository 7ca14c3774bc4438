package pacfall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceLifecycle(t *testing.T) {
	tmp := t.TempDir()

	ws, err := newWorkspace(tmp)
	require.NoError(t, err)

	info, err := os.Stat(ws.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(ws.Path, "a", "b"), ws.Join("a", "b"))

	ws.Remove()
	ws.Remove() // second call is a no-op

	_, err = os.Stat(ws.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestWorkspaceNilRemove(t *testing.T) {
	var ws *Workspace
	assert.NotPanics(t, func() { ws.Remove() })
}
