package hls

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
)

// Rewriter fetches captured playlists and pins their segment authority.
type Rewriter struct {
	client *http.Client
	marker string
}

// NewRewriter returns a rewriter. A nil client uses the shared media client.
func NewRewriter(client *http.Client, marker string) *Rewriter {
	if client == nil {
		client = util.GetSharedClient()
	}
	if marker == "" {
		marker = DefaultSegmentMarker
	}
	return &Rewriter{client: client, marker: marker}
}

// Fetch downloads and parses the playlist at manifestURL. There are no
// retries.
func (r *Rewriter) Fetch(ctx context.Context, manifestURL string) (*Document, error) {
	body, err := util.FetchBytes(ctx, r.client, manifestURL)
	if err != nil {
		return nil, errors.Wrapf(ErrManifestFetchFailed, "%s: %v", manifestURL, err)
	}
	return Parse(body, manifestURL, r.marker)
}

// Process fetches, validates and rewrites the playlist, returning the bytes to
// persist.
func (r *Rewriter) Process(ctx context.Context, manifestURL string) ([]byte, error) {
	doc, err := r.Fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	if doc.SegmentCount() == 0 {
		return nil, errors.Wrapf(ErrNoSegments, "%s", manifestURL)
	}

	foreign := doc.Authorities()
	doc.Rewrite()
	util.Debug("Rewrote manifest",
		"url", manifestURL,
		"segments", doc.SegmentCount(),
		"authorities", len(foreign),
		"authority", doc.Authority)
	return doc.Bytes(), nil
}
