package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/orchestrator"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/state"
	"github.com/alvarorichard/anistrm/internal/tracking"
)

type testEnv struct {
	work    string
	media   string
	history string
	config  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{
		work:    filepath.Join(root, "work"),
		media:   filepath.Join(root, "media"),
		history: filepath.Join(root, "history.db"),
		config:  filepath.Join(root, "anistrm.toml"),
	}
	body := fmt.Sprintf(`[paths]
work_dir = %q
media_dir = %q
runtime_dir = %q
history_db = %q

[remote]
base_url = "https://user.github.io/m3u8"
`, env.work, env.media, filepath.Join(root, "run"), env.history)
	require.NoError(t, os.WriteFile(env.config, []byte(body), 0600))
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, cc := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	require.NoError(t, cc.close())
	return out.String(), err
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "anistrm v")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.toml")
	out, err := execute(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	out, err = execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	_, err = execute(t, "config", "init", "--path", path)
	assert.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, path, "[browser]\nengine = \"webkit\"\n")
	_, err := execute(t, "--config", path, "status")
	assert.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, filepath.Join(env.work, "Sub", "Example_Show", "E001.m3u8"), "#EXTM3U\n")
	writeFile(t, filepath.Join(env.work, "Sub", "Example_Show", "E002.m3u8"), "#EXTM3U\n")
	writeFile(t, filepath.Join(env.work, "Dub", "Example_Show", "E001.m3u8"), "#EXTM3U\n")
	writeFile(t, filepath.Join(env.work, "Sub", "Example_Show", state.LocatorFilename), "https://site/watch/example\n")
	writeFile(t, filepath.Join(env.work, "Sub", "Other", "Season2", "S02E01.m3u8"), "#EXTM3U\n")

	out, err := execute(t, "--config", env.config, "status")
	require.NoError(t, err)

	var exampleLine, otherLine string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "Example Show"):
			exampleLine = line
		case strings.Contains(line, "Other"):
			otherLine = line
		}
	}
	assert.Regexp(t, `Example Show\s+│\s+-\s+│\s+2\s+│\s+1\s+│\s+yes`, exampleLine)
	assert.Regexp(t, `Other\s+│\s+Season2\s+│\s+1\s+│\s+0\s+│\s+no`, otherLine)
}

func TestStatusEmptyTree(t *testing.T) {
	env := newTestEnv(t)
	out, err := execute(t, "--config", env.config, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No series")
}

func TestStrmCommand(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, filepath.Join(env.work, "Sub", "Example_Show", "E001.m3u8"), "#EXTM3U\n")
	writeFile(t, filepath.Join(env.work, "Sub", "Example_Show", "E001.vtt"), "WEBVTT\n")

	out, err := execute(t, "--config", env.config, "strm")
	require.NoError(t, err)
	assert.Contains(t, out, "1 pointer files")

	data, err := os.ReadFile(filepath.Join(env.media, "Sub", "Example Show", "E001.strm"))
	require.NoError(t, err)
	assert.Equal(t, "https://user.github.io/m3u8/Sub/Example_Show/E001.m3u8", string(data))
}

func TestHistoryCommand(t *testing.T) {
	env := newTestEnv(t)
	h, err := tracking.Open(env.history)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), orchestrator.Outcome{
		Series: "Example_Show", Code: "E001", Branch: "Dub", Status: orchestrator.StatusDubUnavailable, Error: "no dub",
	}))
	require.NoError(t, h.Close())

	out, err := execute(t, "--config", env.config, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Example_Show")
	assert.Contains(t, out, "dub-unavailable")

	out, err = execute(t, "--config", env.config, "history", "--summary")
	require.NoError(t, err)
	assert.Regexp(t, `Example_Show\s+│\s+-\s+│\s+0\s+│\s+1`, out)
}

func TestResolveSeasonFlags(t *testing.T) {
	s, err := resolveSeason(3, false)
	require.NoError(t, err)
	assert.Equal(t, naming.Season(3), s)

	s, err = resolveSeason(0, false)
	require.NoError(t, err)
	assert.False(t, s.UsesSeasons)

	s, err = resolveSeason(-1, true)
	require.NoError(t, err)
	assert.False(t, s.UsesSeasons)

	_, err = resolveSeason(-4, true)
	assert.Error(t, err)
}

func TestPickResultByIndex(t *testing.T) {
	results := []site.SearchResult{{Index: 1, Title: "A"}, {Index: 2, Title: "B"}}
	r, err := pickResult(results, 2)
	require.NoError(t, err)
	assert.Equal(t, "B", r.Title)

	_, err = pickResult(results, 3)
	assert.Error(t, err)
}

func TestPickResultFallsBackToMenu(t *testing.T) {
	defer func(f func([]string) (int, error), m func(string, []string) (int, string, error)) {
		fuzzyFind, selectMenu = f, m
	}(fuzzyFind, selectMenu)

	results := []site.SearchResult{{Index: 1, Title: "A"}, {Index: 2, Title: "B"}}
	fuzzyFind = func([]string) (int, error) { return -1, errors.New("open /dev/tty: no such device") }
	var shown []string
	selectMenu = func(_ string, items []string) (int, string, error) {
		shown = items
		return 1, items[1], nil
	}

	r, err := pickResult(results, 0)
	require.NoError(t, err)
	assert.Equal(t, "B", r.Title)
	assert.Equal(t, []string{"1. A", "2. B"}, shown)
}

func TestPickResultAbortSkipsMenu(t *testing.T) {
	defer func(f func([]string) (int, error), m func(string, []string) (int, string, error)) {
		fuzzyFind, selectMenu = f, m
	}(fuzzyFind, selectMenu)

	fuzzyFind = func([]string) (int, error) { return -1, fuzzyfinder.ErrAbort }
	selectMenu = func(string, []string) (int, string, error) {
		t.Fatal("menu shown after abort")
		return -1, "", nil
	}

	_, err := pickResult([]site.SearchResult{{Index: 1, Title: "A"}}, 0)
	assert.ErrorIs(t, err, fuzzyfinder.ErrAbort)
}

func TestFindSeries(t *testing.T) {
	all := []state.Series{{Name: "My_Show", Title: "My Show"}, {Name: "Other", Title: "Other"}}
	for _, name := range []string{"My_Show", "My Show", "My Show!"} {
		s, ok := findSeries(all, name)
		require.True(t, ok, name)
		assert.Equal(t, "My_Show", s.Name)
	}
	_, ok := findSeries(all, "Missing")
	assert.False(t, ok)
}
