package capture

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
)

const (
	runDirPrefix = "run-"
	lockFilename = ".lock"
)

// Workspace is the per-run directory holding the addon script and capture
// log. It stays locked while the run is alive so concurrent runs never share
// a capture log.
type Workspace struct {
	dir  string
	lock *flock.Flock
}

// OpenWorkspace creates and locks a unique run directory under root.
func OpenWorkspace(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, errors.Wrap(err, "create runtime dir")
	}

	dir := filepath.Join(root, runDirPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "create run dir")
	}

	lock := flock.New(filepath.Join(dir, lockFilename))
	ok, err := lock.TryLock()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, errors.Wrap(err, "lock run dir")
	}
	if !ok {
		_ = os.RemoveAll(dir)
		return nil, errors.Wrapf(ErrBusy, "%s", dir)
	}

	util.Debug("Opened capture workspace", "dir", dir)
	return &Workspace{dir: dir, lock: lock}, nil
}

// Dir returns the run directory.
func (w *Workspace) Dir() string { return w.dir }

// Close unlocks and removes the run directory.
func (w *Workspace) Close() error {
	if w == nil {
		return nil
	}
	unlockErr := w.lock.Unlock()
	if err := os.RemoveAll(w.dir); err != nil {
		return errors.Wrap(err, "remove run dir")
	}
	if unlockErr != nil {
		return errors.Wrap(unlockErr, "unlock run dir")
	}
	return nil
}

// PruneStale removes run directories left behind by runs that died without
// cleaning up. Directories whose lock is still held are kept.
func PruneStale(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "read runtime dir")
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runDirPrefix) {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		lock := flock.New(filepath.Join(dir, lockFilename))
		ok, err := lock.TryLock()
		if err != nil || !ok {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			util.Warn("Failed to prune stale run dir", "dir", dir, "error", err)
		} else {
			removed++
		}
		_ = lock.Unlock()
	}
	return removed, nil
}
