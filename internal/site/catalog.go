// Package site searches the streaming site's catalogue and lists the
// episodes of a series page.
package site

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
)

const (
	DefaultBaseURL = "https://hianime.to"

	searchItemSelector  = ".flw-item"
	searchTitleSelector = "h3.film-name a"
	episodeSelector     = "#detail-ss-list .ssl-item"
)

var (
	// ErrNoResults is returned when a search matches nothing.
	ErrNoResults = errors.New("no search results")
	// ErrNoEpisodes is returned when a series page lists no episodes.
	ErrNoEpisodes = errors.New("no episodes listed")
)

// SearchResult is one catalogue hit. Index starts at 1.
type SearchResult struct {
	Index int
	Title string
	URL   string
}

// EpisodeRef is one entry of a series episode list.
type EpisodeRef struct {
	Number int
	URL    string
}

// Fetcher returns the HTML of a page once waitSelector is present.
type Fetcher interface {
	FetchHTML(ctx context.Context, url, waitSelector string) (string, error)
}

// HTTPFetcher fetches pages without rendering them. waitSelector is ignored.
type HTTPFetcher struct {
	Client *http.Client
}

// FetchHTML implements Fetcher.
func (f HTTPFetcher) FetchHTML(ctx context.Context, url, _ string) (string, error) {
	client := f.Client
	if client == nil {
		client = util.GetSiteClient()
	}
	body, err := util.FetchBytes(ctx, client, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Catalog talks to the site through a Fetcher.
type Catalog struct {
	fetcher Fetcher
	baseURL string
	cache   *util.ResponseCache
}

// NewCatalog returns a catalog rooted at baseURL.
func NewCatalog(fetcher Fetcher, baseURL string) *Catalog {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Catalog{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   util.NewResponseCache(5*time.Minute, 32),
	}
}

// SearchURL returns the search page for query.
func (c *Catalog) SearchURL(query string) string {
	return c.baseURL + "/search?keyword=" + url.QueryEscape(query)
}

// Search returns the catalogue hits for query in page order.
func (c *Catalog) Search(ctx context.Context, query string) ([]SearchResult, error) {
	html, err := c.fetch(ctx, c.SearchURL(query), searchItemSelector)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", query)
	}
	results, err := ParseSearch(html, c.baseURL)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.Wrapf(ErrNoResults, "%q", query)
	}
	util.Debug("Search finished", "query", query, "results", len(results))
	return results, nil
}

// Episodes lists the episodes of the series or season page at seriesURL.
func (c *Catalog) Episodes(ctx context.Context, seriesURL string) ([]EpisodeRef, error) {
	html, err := c.fetch(ctx, seriesURL, episodeSelector)
	if err != nil {
		return nil, errors.Wrapf(err, "list episodes of %s", seriesURL)
	}
	episodes, err := ParseEpisodes(html, c.baseURL)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		return nil, errors.Wrapf(ErrNoEpisodes, "%s", seriesURL)
	}
	return episodes, nil
}

func (c *Catalog) fetch(ctx context.Context, pageURL, waitSelector string) (string, error) {
	if data, ok := c.cache.Get(pageURL); ok {
		return string(data), nil
	}
	html, err := c.fetcher.FetchHTML(ctx, pageURL, waitSelector)
	if err != nil {
		return "", err
	}
	c.cache.Set(pageURL, []byte(html))
	return html, nil
}

// ParseSearch extracts search hits. Result URLs point at the watch page.
func ParseSearch(html, baseURL string) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "parse search page")
	}

	var results []SearchResult
	doc.Find(searchItemSelector).Each(func(_ int, s *goquery.Selection) {
		link := s.Find(searchTitleSelector).First()
		href, ok := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if !ok || href == "" || title == "" {
			return
		}
		if !strings.HasPrefix(href, "/") {
			href = "/" + href
		}
		// Search links point at the detail page; episodes are under /watch.
		href = strings.TrimPrefix(href, "/watch")
		results = append(results, SearchResult{
			Index: len(results) + 1,
			Title: title,
			URL:   strings.TrimRight(baseURL, "/") + "/watch" + href,
		})
	})
	return results, nil
}

// ParseEpisodes extracts the episode list. Items without a numeric
// data-number fall back to their position.
func ParseEpisodes(html, baseURL string) ([]EpisodeRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "parse episode list")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}

	var episodes []EpisodeRef
	doc.Find(episodeSelector).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := base.Parse(href)
		if err != nil {
			util.Debug("Skipping episode with bad href", "href", href, "error", err)
			return
		}

		number := i + 1
		if raw, ok := s.Attr("data-number"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
				number = n
			}
		}
		episodes = append(episodes, EpisodeRef{Number: number, URL: ref.String()})
	})
	return episodes, nil
}
