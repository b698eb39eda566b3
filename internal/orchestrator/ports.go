package orchestrator

import (
	"context"
	"net/http"
	"time"

	"github.com/alvarorichard/anistrm/internal/capture"
	"github.com/alvarorichard/anistrm/internal/util"
)

// ProxySession is a running capture proxy.
type ProxySession interface {
	Addr() string
	Correlator() *capture.Correlator
	Stop() error
}

// ProxyStarter launches capture proxies.
type ProxyStarter interface {
	Start(ctx context.Context) (ProxySession, error)
}

// BrowserSession is a page routed through a proxy session.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, timeout time.Duration) error
	ToggleDub(ctx context.Context) error
	Close() error
}

// BrowserOpener opens browser sessions behind a proxy.
type BrowserOpener interface {
	Open(ctx context.Context, proxyAddr string) (BrowserSession, error)
}

// ManifestProcessor fetches a captured manifest and returns the bytes to
// persist.
type ManifestProcessor interface {
	Process(ctx context.Context, manifestURL string) ([]byte, error)
}

// SubtitleFetcher downloads a captured subtitle.
type SubtitleFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Outcome is the record kept for every variant attempt.
type Outcome struct {
	Series      string
	Season      string
	Code        string
	Branch      string
	Status      Status
	ManifestURL string
	Error       string
}

// Recorder stores outcomes. Failures to record never affect the capture.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// HTTPSubtitles fetches subtitles over plain HTTP.
type HTTPSubtitles struct {
	Client *http.Client
}

// Fetch implements SubtitleFetcher.
func (h HTTPSubtitles) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = util.GetSharedClient()
	}
	return util.FetchBytes(ctx, client, url)
}
