package orchestrator

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/output"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/state"
)

type fakeCatalog struct {
	searches []string
	listings map[string][]site.EpisodeRef
	results  []site.SearchResult
}

func (c *fakeCatalog) Search(_ context.Context, q string) ([]site.SearchResult, error) {
	c.searches = append(c.searches, q)
	return c.results, nil
}

func (c *fakeCatalog) Episodes(_ context.Context, u string) ([]site.EpisodeRef, error) {
	eps, ok := c.listings[u]
	if !ok {
		return nil, errors.New("404")
	}
	return eps, nil
}

func TestResolveJobTrustsLocator(t *testing.T) {
	store := state.NewStore(output.Layout{WorkRoot: t.TempDir()})
	season := naming.Season(2)
	require.NoError(t, store.SaveLocator(state.Locator{Title: "Show", SanitizedName: "Show", RemoteURL: "https://site/watch/show-2"}, season))

	cat := &fakeCatalog{listings: map[string][]site.EpisodeRef{
		"https://site/watch/show-2": {{Number: 1, URL: "https://site/watch/show-2?ep=1"}},
	}}
	job, err := ResolveJob(context.Background(), cat, store, state.Series{Name: "Show", Title: "Show"}, season)
	require.NoError(t, err)
	assert.Empty(t, cat.searches)
	assert.Equal(t, "https://site/watch/show-2", job.LocatorURL)
	assert.Len(t, job.Episodes, 1)
	assert.Equal(t, season, job.Season)
}

func TestResolveJobSearchesWhenLocatorFails(t *testing.T) {
	store := state.NewStore(output.Layout{WorkRoot: t.TempDir()})
	require.NoError(t, store.SaveLocator(state.Locator{SanitizedName: "My_Show", RemoteURL: "https://site/watch/gone"}, naming.NoSeasons()))

	cat := &fakeCatalog{
		results: []site.SearchResult{
			{Index: 1, Title: "My Show", URL: "https://site/watch/my-show-new"},
			{Index: 2, Title: "My Show OVA", URL: "https://site/watch/my-show-ova"},
		},
		listings: map[string][]site.EpisodeRef{
			"https://site/watch/my-show-new": {{Number: 1}, {Number: 2}},
		},
	}
	job, err := ResolveJob(context.Background(), cat, store, state.Series{Name: "My_Show", Title: "My Show"}, naming.NoSeasons())
	require.NoError(t, err)
	assert.Equal(t, []string{"My Show"}, cat.searches)
	assert.Equal(t, "https://site/watch/my-show-new", job.LocatorURL)
	assert.Len(t, job.Episodes, 2)
}

func TestResolveJobWithoutLocatorOrResults(t *testing.T) {
	store := state.NewStore(output.Layout{WorkRoot: t.TempDir()})
	_, err := ResolveJob(context.Background(), &fakeCatalog{}, store, state.Series{Name: "X", Title: "X"}, naming.NoSeasons())
	assert.ErrorIs(t, err, site.ErrNoResults)
}

func TestSelectEpisode(t *testing.T) {
	eps := []site.EpisodeRef{{Number: 1, URL: "a"}, {Number: 2, URL: "b"}}
	ep, err := SelectEpisode(eps, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", ep.URL)

	_, err = SelectEpisode(eps, 3)
	assert.Error(t, err)
}
