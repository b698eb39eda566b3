// Package publish commits the working tree to git and pushes it, so the
// pointer base URL serves the latest manifests.
package publish

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
)

// ErrNotRepository means the working root is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Runner executes git. Tests substitute their own.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (exitCode int, output string, err error)
}

// ExecRunner runs the git binary.
type ExecRunner struct {
	Binary string
}

// Run implements Runner. A non-zero exit is reported through exitCode, not
// err; err is reserved for failures to run git at all.
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) (int, string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 - fixed git subcommands
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), out.String(), nil
	}
	if err != nil {
		return -1, out.String(), errors.Wrapf(err, "run %s %s", bin, strings.Join(args, " "))
	}
	return 0, out.String(), nil
}

// Git stages the branch roots, commits when something changed and
// optionally pushes.
type Git struct {
	Dir    string
	Paths  []string // relative to Dir
	Push   bool
	Runner Runner
}

// Publish returns whether a commit was made.
func (g Git) Publish(ctx context.Context, message string) (bool, error) {
	runner := g.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	if code, out, err := runner.Run(ctx, g.Dir, "rev-parse", "--is-inside-work-tree"); err != nil {
		return false, err
	} else if code != 0 || strings.TrimSpace(out) != "true" {
		return false, errors.Wrap(ErrNotRepository, g.Dir)
	}

	var paths []string
	for _, p := range g.Paths {
		if _, err := os.Stat(filepath.Join(g.Dir, p)); err == nil {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		util.Info("Nothing to publish")
		return false, nil
	}

	if err := g.must(ctx, runner, append([]string{"add", "-A", "--"}, paths...)...); err != nil {
		return false, err
	}

	code, out, err := runner.Run(ctx, g.Dir, "diff", "--cached", "--quiet")
	if err != nil {
		return false, err
	}
	switch code {
	case 0:
		util.Info("No changes to commit")
		return false, nil
	case 1:
	default:
		return false, errors.Errorf("git diff failed (exit %d): %s", code, strings.TrimSpace(out))
	}

	if err := g.must(ctx, runner, "commit", "-m", message); err != nil {
		return false, err
	}
	util.Info("Committed working tree", "message", message)

	if g.Push {
		if err := g.must(ctx, runner, "push"); err != nil {
			return true, err
		}
		util.Info("Pushed working tree")
	}
	return true, nil
}

func (g Git) must(ctx context.Context, runner Runner, args ...string) error {
	code, out, err := runner.Run(ctx, g.Dir, args...)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.Errorf("git %s failed (exit %d): %s", args[0], code, strings.TrimSpace(out))
	}
	return nil
}
