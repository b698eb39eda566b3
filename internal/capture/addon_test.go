package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAddon(t *testing.T) {
	script, err := RenderAddon(DefaultRule(), "/tmp/run-1/captured_links.txt")
	require.NoError(t, err)

	s := string(script)
	assert.Contains(t, s, `LOG_PATH = "/tmp/run-1/captured_links.txt"`)
	assert.Contains(t, s, `\"master_filename\":\"master.m3u8\"`)
	assert.Contains(t, s, `\"exclude_markers\":[\"jwplayer6\"]`)
	assert.Contains(t, s, `_append("m3u8"`)
	assert.Contains(t, s, `_append("vtt"`)
	assert.Contains(t, s, "def response(flow: http.HTTPFlow):")
}

func TestWriteAddon(t *testing.T) {
	dir := t.TempDir()
	path, err := writeAddon(dir, DefaultRule(), filepath.Join(dir, LogFilename))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, AddonFilename), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
