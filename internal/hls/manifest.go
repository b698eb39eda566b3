// Package hls rewrites captured HLS media playlists so every segment
// reference points at the playlist's own host.
package hls

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSegmentMarker identifies segment URLs in the site's playlists.
const DefaultSegmentMarker = "/seg-"

var (
	// ErrManifestFetchFailed is returned when the playlist cannot be fetched.
	ErrManifestFetchFailed = errors.New("manifest fetch failed")
	// ErrNoSegments is returned for playlists without a single segment
	// reference. They are not accepted as captures.
	ErrNoSegments = errors.New("manifest has no segment references")
)

// Line is one playlist line. Text keeps its original bytes, including a
// trailing carriage return.
type Line struct {
	Text    string
	Segment bool
}

// Document is a parsed playlist together with the authority of the URL it
// was fetched from.
type Document struct {
	Lines     []Line
	Authority string
}

// Parse splits body into lines and classifies segment references.
func Parse(body []byte, manifestURL, marker string) (*Document, error) {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse manifest url")
	}
	if u.Host == "" {
		return nil, errors.Errorf("manifest url %q has no host", manifestURL)
	}
	if marker == "" {
		marker = DefaultSegmentMarker
	}

	raw := strings.Split(string(body), "\n")
	doc := &Document{Lines: make([]Line, len(raw)), Authority: u.Host}
	for i, text := range raw {
		doc.Lines[i] = Line{Text: text, Segment: isSegment(text, marker)}
	}
	return doc, nil
}

func isSegment(line, marker string) bool {
	line = strings.TrimSuffix(line, "\r")
	if !hasPrefixFold(line, "https://") && !hasPrefixFold(line, "http://") {
		return false
	}
	return strings.Contains(line, marker)
}

// hasPrefixFold reports whether s starts with prefix, ignoring case. URL
// schemes are case-insensitive.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// authoritySpan returns the byte range of the authority in an absolute URL.
func authoritySpan(line string) (int, int, bool) {
	i := strings.Index(line, "://")
	if i < 0 {
		return 0, 0, false
	}
	start := i + len("://")
	end := len(line)
	if j := strings.IndexAny(line[start:], "/?#\r"); j >= 0 {
		end = start + j
	}
	return start, end, true
}

// Rewrite replaces the authority of every segment line with the document's
// authority. Nothing else is touched.
func (d *Document) Rewrite() {
	for i, line := range d.Lines {
		if !line.Segment {
			continue
		}
		start, end, ok := authoritySpan(line.Text)
		if !ok {
			continue
		}
		d.Lines[i].Text = line.Text[:start] + d.Authority + line.Text[end:]
	}
}

// SegmentCount returns the number of segment references.
func (d *Document) SegmentCount() int {
	n := 0
	for _, line := range d.Lines {
		if line.Segment {
			n++
		}
	}
	return n
}

// Authorities returns the distinct segment authorities in order of first
// appearance.
func (d *Document) Authorities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range d.Lines {
		if !line.Segment {
			continue
		}
		start, end, ok := authoritySpan(line.Text)
		if !ok {
			continue
		}
		host := line.Text[start:end]
		if !seen[host] {
			seen[host] = true
			out = append(out, host)
		}
	}
	return out
}

// Bytes renders the document.
func (d *Document) Bytes() []byte {
	texts := make([]string, len(d.Lines))
	for i, line := range d.Lines {
		texts[i] = line.Text
	}
	return []byte(strings.Join(texts, "\n"))
}
