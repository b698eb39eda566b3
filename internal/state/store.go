// Package state discovers series already present in the working tree and
// persists the remote locator of each series or season.
package state

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/output"
	"github.com/alvarorichard/anistrm/internal/util"
)

// LocatorFilename holds the remote URL last used for a season or series.
const LocatorFilename = "season_link.txt"

// Locator ties a working tree folder to the remote page it was captured from.
type Locator struct {
	Title         string
	SanitizedName string
	RemoteURL     string
}

// Series is a series found on disk.
type Series struct {
	Name       string // sanitized folder name
	Title      string // reconstructed human-readable name
	Unseasoned bool   // episodes directly under the series folder
	Seasons    []naming.SeasonInfo
}

// Targets lists the season infos refresh should visit.
func (s Series) Targets() []naming.SeasonInfo {
	var out []naming.SeasonInfo
	if s.Unseasoned {
		out = append(out, naming.NoSeasons())
	}
	return append(out, s.Seasons...)
}

// Store reads and writes state kept in the working tree.
type Store struct {
	layout output.Layout
}

// NewStore returns a store over layout's working tree.
func NewStore(layout output.Layout) *Store {
	return &Store{layout: layout}
}

// Discover merges the series of both branch roots, sorted by name.
func (s *Store) Discover() ([]Series, error) {
	byName := make(map[string]*Series)
	seasonSeen := make(map[string]map[string]bool)

	for _, branch := range output.Branches() {
		root := filepath.Join(s.layout.WorkRoot, string(branch))
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "read %s", root)
		}

		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			name := entry.Name()
			series, ok := byName[name]
			if !ok {
				series = &Series{Name: name, Title: naming.Humanize(name)}
				byName[name] = series
				seasonSeen[name] = make(map[string]bool)
			}

			children, err := os.ReadDir(filepath.Join(root, name))
			if err != nil {
				return nil, errors.Wrapf(err, "read series %s", name)
			}
			for _, child := range children {
				if child.IsDir() {
					season, ok := naming.ParseSeasonDir(child.Name())
					if ok && !seasonSeen[name][child.Name()] {
						seasonSeen[name][child.Name()] = true
						series.Seasons = append(series.Seasons, season)
					}
					continue
				}
				switch filepath.Ext(child.Name()) {
				case output.ManifestExt, output.SubtitleExt:
					series.Unseasoned = true
				}
				if child.Name() == LocatorFilename {
					series.Unseasoned = true
				}
			}
		}
	}

	out := make([]Series, 0, len(byName))
	for _, series := range byName {
		sort.Slice(series.Seasons, func(i, j int) bool {
			return series.Seasons[i].Number < series.Seasons[j].Number
		})
		out = append(out, *series)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Locator returns the persisted locator, preferring the sub branch. The
// boolean is false when neither branch has one.
func (s *Store) Locator(series string, season naming.SeasonInfo) (Locator, bool, error) {
	for _, branch := range output.Branches() {
		path := filepath.Join(s.layout.SeriesDir(branch, series, season), LocatorFilename)
		data, err := os.ReadFile(path) // #nosec G304 - path built from the working tree
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Locator{}, false, errors.Wrapf(err, "read %s", path)
		}
		remote := strings.TrimSpace(firstLine(string(data)))
		if remote == "" {
			util.Warn("Ignoring empty locator file", "path", path)
			continue
		}
		return Locator{Title: naming.Humanize(series), SanitizedName: series, RemoteURL: remote}, true, nil
	}
	return Locator{}, false, nil
}

// SaveLocator writes the locator into both branches.
func (s *Store) SaveLocator(loc Locator, season naming.SeasonInfo) error {
	if loc.RemoteURL == "" {
		return errors.New("locator has no remote url")
	}
	for _, branch := range output.Branches() {
		dir := s.layout.SeriesDir(branch, loc.SanitizedName, season)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
		path := filepath.Join(dir, LocatorFilename)
		if err := os.WriteFile(path, []byte(loc.RemoteURL+"\n"), 0600); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	util.Debug("Saved locator", "series", loc.SanitizedName, "season", season, "url", loc.RemoteURL)
	return nil
}

// ExistingEpisodes returns the episode numbers that have a manifest in
// branch. Subtitle-only leftovers do not count.
func (s *Store) ExistingEpisodes(branch output.Branch, series string, season naming.SeasonInfo) ([]int, error) {
	dir := s.layout.SeriesDir(branch, series, season)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	var episodes []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != output.ManifestExt {
			continue
		}
		got, episode, err := naming.Parse(strings.TrimSuffix(name, output.ManifestExt))
		if err != nil || got.UsesSeasons != season.UsesSeasons || got.Number != season.Number {
			util.Debug("Ignoring unrecognised file", "dir", dir, "file", name)
			continue
		}
		episodes = append(episodes, episode)
	}
	sort.Ints(episodes)
	return episodes, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
