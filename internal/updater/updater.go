// Package updater checks whether a newer anistrm release is published.
package updater

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
	"github.com/alvarorichard/anistrm/internal/version"
)

const (
	GitHubOwner = "alvarorichard"
	GitHubRepo  = "anistrm"
	GitHubAPI   = "https://api.github.com/repos/" + GitHubOwner + "/" + GitHubRepo
)

// Release is the subset of a GitHub release the check reads.
type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// Checker queries the releases API.
type Checker struct {
	APIURL string
	Client *http.Client
}

// Latest returns the latest release and whether it is newer than current.
func (c Checker) Latest(ctx context.Context, current string) (*Release, bool, error) {
	api := c.APIURL
	if api == "" {
		api = GitHubAPI
	}
	client := c.Client
	if client == nil {
		client = util.GetSiteClient()
	}

	body, err := util.FetchBytes(ctx, client, strings.TrimRight(api, "/")+"/releases/latest")
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to fetch latest release")
	}
	var release Release
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, false, errors.Wrap(err, "failed to decode release data")
	}

	newer, err := IsNewer(release.TagName, current)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to compare versions")
	}
	return &release, newer, nil
}

// Check compares the latest release with the running version.
func (c Checker) Check(ctx context.Context) (*Release, bool, error) {
	return c.Latest(ctx, version.Version)
}

// IsNewer reports whether latest is a higher dotted version than current.
// A leading "v" and any pre-release suffix ("-rc1") are ignored.
func IsNewer(latest, current string) (bool, error) {
	latestParts, err := versionParts(latest)
	if err != nil {
		return false, errors.Wrapf(err, "latest %q", latest)
	}
	currentParts, err := versionParts(current)
	if err != nil {
		return false, errors.Wrapf(err, "current %q", current)
	}

	for len(latestParts) < len(currentParts) {
		latestParts = append(latestParts, 0)
	}
	for len(currentParts) < len(latestParts) {
		currentParts = append(currentParts, 0)
	}

	for i := range latestParts {
		if latestParts[i] != currentParts[i] {
			return latestParts[i] > currentParts[i], nil
		}
	}
	return false, nil
}

func versionParts(v string) ([]int, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil, errors.New("empty version")
	}
	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid version component %q", f)
		}
		parts[i] = n
	}
	return parts, nil
}
