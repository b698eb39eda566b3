package orchestrator

import (
	"context"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/state"
	"github.com/alvarorichard/anistrm/internal/util"
)

// Catalog is the site collaborator: search and episode listing.
type Catalog interface {
	Search(ctx context.Context, query string) ([]site.SearchResult, error)
	Episodes(ctx context.Context, seriesURL string) ([]site.EpisodeRef, error)
}

// ResolveJob builds the job for an existing series season. A stored locator
// is trusted; the series is searched again only when the locator is missing
// or its episode list cannot be read, and the first hit then becomes the new
// locator once the run captures something.
func ResolveJob(ctx context.Context, cat Catalog, store *state.Store, series state.Series, season naming.SeasonInfo) (SeriesJob, error) {
	job := SeriesJob{Title: series.Title, Name: series.Name, Season: season}

	loc, ok, err := store.Locator(series.Name, season)
	if err != nil {
		return job, err
	}
	if ok {
		eps, err := cat.Episodes(ctx, loc.RemoteURL)
		if err == nil && len(eps) > 0 {
			job.LocatorURL = loc.RemoteURL
			job.Episodes = eps
			return job, nil
		}
		if ctx.Err() != nil {
			return job, ctx.Err()
		}
		util.Warn("Stored locator unusable, searching again", "series", series.Name, "season", season, "url", loc.RemoteURL, "error", err)
	}

	results, err := cat.Search(ctx, series.Title)
	if err != nil {
		return job, errors.Wrapf(err, "re-search %s", series.Title)
	}
	if len(results) == 0 {
		return job, errors.Wrapf(site.ErrNoResults, "%q", series.Title)
	}
	first := results[0]
	eps, err := cat.Episodes(ctx, first.URL)
	if err != nil {
		return job, err
	}
	if len(eps) == 0 {
		return job, errors.Wrapf(site.ErrNoEpisodes, "%s", first.URL)
	}
	util.Info("Resolved series by search", "series", series.Name, "match", first.Title, "url", first.URL)
	job.LocatorURL = first.URL
	job.Episodes = eps
	return job, nil
}

// SelectEpisode narrows a listing to one episode number.
func SelectEpisode(episodes []site.EpisodeRef, number int) (site.EpisodeRef, error) {
	for _, ep := range episodes {
		if ep.Number == number {
			return ep, nil
		}
	}
	return site.EpisodeRef{}, errors.Errorf("episode %d not listed (%d episodes)", number, len(episodes))
}
