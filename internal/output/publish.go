package output

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/util"
)

// PublishSeries rebuilds the published tree of one series or season in both
// branches.
func (l Layout) PublishSeries(series string, season naming.SeasonInfo) ([]Artifact, error) {
	rel := filepath.Join(series, season.Dir())
	var out []Artifact
	for _, branch := range Branches() {
		arts, err := l.publishDir(branch, rel)
		if err != nil {
			return out, err
		}
		out = append(out, arts...)
	}
	return out, nil
}

// PublishAll rebuilds the published tree for every directory of the working
// tree.
func (l Layout) PublishAll() ([]Artifact, error) {
	var out []Artifact
	for _, branch := range Branches() {
		root := filepath.Join(l.WorkRoot, string(branch))
		var dirs []string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() && path != root {
				rel, relErr := filepath.Rel(root, path)
				if relErr != nil {
					return relErr
				}
				dirs = append(dirs, rel)
			}
			return nil
		})
		if err != nil {
			return out, errors.Wrapf(err, "walk %s", root)
		}

		for _, rel := range dirs {
			arts, err := l.publishDir(branch, rel)
			if err != nil {
				return out, err
			}
			out = append(out, arts...)
		}
	}
	return out, nil
}

// publishedDir mirrors a working directory with human-readable names.
func (l Layout) publishedDir(branch Branch, rel string) string {
	parts := []string{l.MediaRoot, string(branch)}
	for _, p := range strings.Split(filepath.ToSlash(rel), "/") {
		if p != "" {
			parts = append(parts, naming.Humanize(p))
		}
	}
	return filepath.Join(parts...)
}

func (l Layout) publishDir(branch Branch, rel string) ([]Artifact, error) {
	src := filepath.Join(l.WorkRoot, string(branch), rel)
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", src)
	}

	dst := l.publishedDir(branch, rel)
	wanted := make(map[string]bool)
	var out []Artifact

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		switch filepath.Ext(name) {
		case ManifestExt:
			code := naming.Code(strings.TrimSuffix(name, ManifestExt))
			pointerName := code.Display() + PointerExt
			pointer := filepath.Join(dst, pointerName)
			target := l.PointerURL(branch, filepath.ToSlash(filepath.Join(rel, name)))
			if err := writeFileAtomic(pointer, []byte(target)); err != nil {
				return out, err
			}
			wanted[pointerName] = true
			out = append(out, Artifact{Path: pointer, Kind: KindPointer})

		case SubtitleExt:
			dest := filepath.Join(dst, naming.Humanize(name))
			if _, err := os.Stat(dest); err == nil {
				continue
			}
			if err := copyFileAtomic(filepath.Join(src, name), dest); err != nil {
				return out, err
			}
			out = append(out, Artifact{Path: dest, Kind: KindSubtitle})
		}
	}

	removed, err := prunePointers(dst, wanted)
	if err != nil {
		return out, err
	}
	for _, name := range removed {
		util.Warn("Removed pointer without manifest", "branch", branch, "dir", rel, "file", name)
	}
	return out, nil
}

// prunePointers deletes pointer files whose manifest no longer exists.
func prunePointers(dir string, wanted map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != PointerExt || wanted[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, errors.Wrapf(err, "remove %s", name)
		}
		removed = append(removed, name)
	}
	sort.Strings(removed)
	return removed, nil
}
