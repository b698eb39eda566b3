// Package capture owns the intercepting proxy session and the capture log it
// writes: one "<kind>:<url>" line per matched response.
package capture

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a captured response.
type Kind string

const (
	KindManifest Kind = "m3u8"
	KindSubtitle Kind = "vtt"
)

// ErrMalformedRecord is returned for capture log lines that do not parse.
var ErrMalformedRecord = errors.New("malformed capture record")

// Record is a single capture log entry.
type Record struct {
	Kind Kind
	URL  string
}

func (r Record) String() string {
	return string(r.Kind) + ":" + r.URL
}

// ParseRecord parses one capture log line.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	kind, url, ok := strings.Cut(line, ":")
	if !ok || url == "" {
		return Record{}, errors.Wrapf(ErrMalformedRecord, "%q", line)
	}
	switch Kind(kind) {
	case KindManifest, KindSubtitle:
		return Record{Kind: Kind(kind), URL: url}, nil
	default:
		return Record{}, errors.Wrapf(ErrMalformedRecord, "unknown kind %q", kind)
	}
}
