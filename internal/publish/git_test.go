package publish

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	args []string
}

type fakeRunner struct {
	calls []call
	codes map[string]int
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (int, string, error) {
	f.calls = append(f.calls, call{args: args})
	if args[0] == "rev-parse" {
		return 0, "true\n", nil
	}
	return f.codes[args[0]], "", nil
}

func (f *fakeRunner) commands() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.args[0])
	}
	return out
}

func TestPublishCommitsAndPushes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Sub"), 0755))

	r := &fakeRunner{codes: map[string]int{"diff": 1}}
	g := Git{Dir: dir, Paths: []string{"Sub", "Dub"}, Push: true, Runner: r}

	committed, err := g.Publish(context.Background(), "Add Example_Show")
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, []string{"rev-parse", "add", "diff", "commit", "push"}, r.commands())
	assert.Equal(t, []string{"add", "-A", "--", "Sub"}, r.calls[1].args, "missing roots are not staged")
}

func TestPublishNoChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Dub"), 0755))

	r := &fakeRunner{codes: map[string]int{}}
	committed, err := Git{Dir: dir, Paths: []string{"Sub", "Dub"}, Push: true, Runner: r}.Publish(context.Background(), "msg")
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, []string{"rev-parse", "add", "diff"}, r.commands())
}

func TestPublishFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Sub"), 0755))

	r := &fakeRunner{codes: map[string]int{"diff": 1, "push": 128}}
	committed, err := Git{Dir: dir, Paths: []string{"Sub"}, Push: true, Runner: r}.Publish(context.Background(), "msg")
	require.Error(t, err)
	assert.True(t, committed, "commit survives a failed push")
	assert.Contains(t, err.Error(), "git push failed")

	r = &fakeRunner{codes: map[string]int{"add": 128}}
	_, err = Git{Dir: dir, Paths: []string{"Sub"}, Runner: r}.Publish(context.Background(), "msg")
	require.Error(t, err)
	assert.Equal(t, []string{"rev-parse", "add"}, r.commands())
}

func TestPublishRealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	ctx := context.Background()
	run := func(args ...string) string {
		code, out, err := ExecRunner{}.Run(ctx, dir, args...)
		require.NoError(t, err)
		require.Zero(t, code, out)
		return out
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	run("config", "commit.gpgsign", "false")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Sub", "Show"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Sub", "Show", "E001.m3u8"), []byte("#EXTM3U\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	g := Git{Dir: dir, Paths: []string{"Sub", "Dub"}}
	committed, err := g.Publish(ctx, "Add Show")
	require.NoError(t, err)
	assert.True(t, committed)

	files := run("ls-files")
	assert.Contains(t, files, "Sub/Show/E001.m3u8")
	assert.NotContains(t, files, "notes.txt")
	assert.True(t, strings.Contains(run("log", "--oneline"), "Add Show"))

	committed, err = g.Publish(ctx, "Add Show again")
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestPublishOutsideRepository(t *testing.T) {
	_, err := Git{Dir: t.TempDir(), Paths: []string{"Sub"}, Runner: notRepo{}}.Publish(context.Background(), "msg")
	assert.ErrorIs(t, err, ErrNotRepository)
}

type notRepo struct{}

func (notRepo) Run(context.Context, string, ...string) (int, string, error) {
	return 128, "fatal: not a git repository", nil
}
