// Package output writes the working tree of manifests and subtitles and
// rebuilds the published tree of pointer files from it.
package output

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/naming"
)

// Branch is an audio variant root.
type Branch string

const (
	BranchSub Branch = "Sub"
	BranchDub Branch = "Dub"
)

// Branches lists the variant roots in processing order.
func Branches() []Branch {
	return []Branch{BranchSub, BranchDub}
}

const (
	ManifestExt = ".m3u8"
	SubtitleExt = ".vtt"
	PointerExt  = ".strm"
)

// ArtifactKind classifies written files.
type ArtifactKind string

const (
	KindManifest ArtifactKind = "manifest"
	KindSubtitle ArtifactKind = "subtitle"
	KindPointer  ArtifactKind = "pointer"
)

// Artifact is a file written by the publisher.
type Artifact struct {
	Path string
	Kind ArtifactKind
}

// Layout locates the working tree, the published media tree and the remote
// base the pointers resolve against.
type Layout struct {
	WorkRoot   string
	MediaRoot  string
	RemoteBase string
}

// SeriesDir is the working directory of a series or one of its seasons.
func (l Layout) SeriesDir(branch Branch, series string, season naming.SeasonInfo) string {
	return filepath.Join(l.WorkRoot, string(branch), series, season.Dir())
}

// ManifestPath is where the manifest of an episode variant lives.
func (l Layout) ManifestPath(branch Branch, series string, season naming.SeasonInfo, code naming.Code) string {
	return filepath.Join(l.SeriesDir(branch, series, season), string(code)+ManifestExt)
}

// SubtitlePath is where the subtitle of an episode variant lives. Subtitles
// carry the display rendering of the code.
func (l Layout) SubtitlePath(branch Branch, series string, season naming.SeasonInfo, code naming.Code) string {
	return filepath.Join(l.SeriesDir(branch, series, season), code.Display()+SubtitleExt)
}

// HasManifest reports whether the variant was already captured.
func (l Layout) HasManifest(branch Branch, series string, season naming.SeasonInfo, code naming.Code) bool {
	info, err := os.Stat(l.ManifestPath(branch, series, season, code))
	return err == nil && info.Mode().IsRegular()
}

// WriteManifest stores a rewritten manifest.
func (l Layout) WriteManifest(branch Branch, series string, season naming.SeasonInfo, code naming.Code, data []byte) (Artifact, error) {
	path := l.ManifestPath(branch, series, season, code)
	if err := writeFileAtomic(path, data); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, Kind: KindManifest}, nil
}

// WriteSubtitle stores a downloaded subtitle.
func (l Layout) WriteSubtitle(branch Branch, series string, season naming.SeasonInfo, code naming.Code, data []byte) (Artifact, error) {
	path := l.SubtitlePath(branch, series, season, code)
	if err := writeFileAtomic(path, data); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, Kind: KindSubtitle}, nil
}

// CopySubtitle copies an episode subtitle between branches.
func (l Layout) CopySubtitle(from, to Branch, series string, season naming.SeasonInfo, code naming.Code) (Artifact, error) {
	src := l.SubtitlePath(from, series, season, code)
	dst := l.SubtitlePath(to, series, season, code)
	if err := copyFileAtomic(src, dst); err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: dst, Kind: KindSubtitle}, nil
}

// PointerURL builds the percent-encoded remote URL of a working tree file.
// rel is the slash-separated path below the branch root.
func (l Layout) PointerURL(branch Branch, rel string) string {
	parts := []string{strings.TrimRight(l.RemoteBase, "/"), url.PathEscape(string(branch))}
	for _, p := range strings.Split(filepath.ToSlash(rel), "/") {
		if p != "" {
			parts = append(parts, url.PathEscape(p))
		}
	}
	return strings.Join(parts, "/")
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil { // #nosec G302 - media server must read these
		return errors.Wrapf(err, "chmod %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename %s", path)
}

func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - path built from the working tree
	if err != nil {
		return errors.Wrapf(err, "open %s", src)
	}
	defer func() { _ = in.Close() }()

	data, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrapf(err, "read %s", src)
	}
	return writeFileAtomic(dst, data)
}
