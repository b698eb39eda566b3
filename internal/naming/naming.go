// Package naming generates and parses the episode codes and folder names used
// by the working and published trees.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SeasonPrefix is the folder prefix of season directories ("Season2").
const SeasonPrefix = "Season"

// ErrInvalidCode is returned when a string is not a canonical episode code.
var ErrInvalidCode = errors.New("invalid episode code")

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\- ]`)
	codePattern = regexp.MustCompile(`^(?:S(\d{2,})E(\d{2,})|E(\d{3,}))$`)
)

// SeasonInfo describes whether a series is split into seasons and, if so,
// which one. The zero value is an unseasoned series.
type SeasonInfo struct {
	UsesSeasons bool
	Number      int
	Label       string
}

// NoSeasons returns the SeasonInfo of a series without season folders.
func NoSeasons() SeasonInfo {
	return SeasonInfo{}
}

// Season returns the SeasonInfo for season n.
func Season(n int) SeasonInfo {
	return SeasonInfo{UsesSeasons: true, Number: n, Label: fmt.Sprintf("%s%d", SeasonPrefix, n)}
}

// Dir returns the season folder name, or "" for unseasoned series.
func (s SeasonInfo) Dir() string {
	if !s.UsesSeasons {
		return ""
	}
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("%s%d", SeasonPrefix, s.Number)
}

func (s SeasonInfo) String() string {
	if !s.UsesSeasons {
		return "no seasons"
	}
	return s.Dir()
}

// ParseSeasonDir turns a "Season<N>" folder name back into a SeasonInfo.
func ParseSeasonDir(name string) (SeasonInfo, bool) {
	if !strings.HasPrefix(name, SeasonPrefix) {
		return SeasonInfo{}, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, SeasonPrefix))
	if err != nil || n < 0 {
		return SeasonInfo{}, false
	}
	return SeasonInfo{UsesSeasons: true, Number: n, Label: name}, true
}

// Code is the sanitized episode code used in the working tree.
type Code string

// NewCode renders the code for an episode: S01E02 when the series uses
// seasons, E002 otherwise.
func NewCode(season SeasonInfo, episode int) Code {
	if season.UsesSeasons {
		return Code(fmt.Sprintf("S%02dE%02d", season.Number, episode))
	}
	return Code(fmt.Sprintf("E%03d", episode))
}

// Display is the human-readable rendering of the code.
func (c Code) Display() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

func (c Code) String() string { return string(c) }

// Parse recovers the season and episode from either rendering of a code.
// Only canonical renderings are accepted, so every (season, episode) pair
// has exactly one code.
func Parse(s string) (SeasonInfo, int, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	m := codePattern.FindStringSubmatch(raw)
	if m == nil {
		return SeasonInfo{}, 0, errors.Wrapf(ErrInvalidCode, "%q", s)
	}

	var season SeasonInfo
	var episode int
	if m[3] != "" {
		episode, _ = strconv.Atoi(m[3])
	} else {
		n, _ := strconv.Atoi(m[1])
		season = Season(n)
		episode, _ = strconv.Atoi(m[2])
	}

	if string(NewCode(season, episode)) != raw {
		return SeasonInfo{}, 0, errors.Wrapf(ErrInvalidCode, "%q is not canonical", s)
	}
	return season, episode, nil
}

// Sanitize turns a title into a folder name: characters other than letters,
// digits, dash, underscore and space are removed and spaces become
// underscores.
func Sanitize(title string) string {
	cleaned := unsafeChars.ReplaceAllString(title, "")
	return strings.ReplaceAll(strings.TrimSpace(cleaned), " ", "_")
}

// Humanize reconstructs a display name from a sanitized folder name.
func Humanize(sanitized string) string {
	return strings.TrimSpace(strings.ReplaceAll(sanitized, "_", " "))
}
