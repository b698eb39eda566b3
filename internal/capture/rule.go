package capture

import (
	"net/url"
	"strings"
)

// Rule decides which proxied responses end up in the capture log.
type Rule struct {
	// MasterFilename is the adaptive master playlist name the player requests.
	MasterFilename string `json:"master_filename"`
	// RenditionFilename replaces MasterFilename so one concrete rendition is
	// captured instead of the master.
	RenditionFilename string `json:"rendition_filename"`
	// ExcludeMarkers drop manifest candidates issued by redundant players.
	ExcludeMarkers []string `json:"exclude_markers"`
	// SubtitleExtension marks subtitle candidates.
	SubtitleExtension string `json:"subtitle_extension"`
}

// DefaultRule matches the hianime player traffic.
func DefaultRule() Rule {
	return Rule{
		MasterFilename:    "master.m3u8",
		RenditionFilename: "index-f1-v1-a1.m3u8",
		ExcludeMarkers:    []string{"jwplayer6"},
		SubtitleExtension: ".vtt",
	}
}

// Match classifies a response URL. Manifest matches carry the rendition URL,
// byte-identical to the captured one except for the filename.
func (r Rule) Match(rawURL string) (Record, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Record{}, false
	}

	head, tail := rawURL, ""
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		head, tail = rawURL[:i], rawURL[i:]
	}
	if r.MasterFilename != "" && strings.HasSuffix(head, r.MasterFilename) && !r.excluded(rawURL) {
		rendition := strings.TrimSuffix(head, r.MasterFilename) + r.RenditionFilename + tail
		return Record{Kind: KindManifest, URL: rendition}, true
	}

	if r.SubtitleExtension != "" && strings.HasSuffix(u.Path, r.SubtitleExtension) {
		return Record{Kind: KindSubtitle, URL: rawURL}, true
	}

	return Record{}, false
}

func (r Rule) excluded(rawURL string) bool {
	for _, marker := range r.ExcludeMarkers {
		if marker != "" && strings.Contains(rawURL, marker) {
			return true
		}
	}
	return false
}
