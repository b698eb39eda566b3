package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleMatch(t *testing.T) {
	rule := DefaultRule()

	tests := []struct {
		name   string
		url    string
		want   Record
		wantOK bool
	}{
		{
			name:   "master rewritten to rendition",
			url:    "https://cdn.example.net/hls/abc/master.m3u8",
			want:   Record{Kind: KindManifest, URL: "https://cdn.example.net/hls/abc/index-f1-v1-a1.m3u8"},
			wantOK: true,
		},
		{
			name:   "query string kept",
			url:    "https://cdn.example.net/hls/abc/master.m3u8?token=x",
			want:   Record{Kind: KindManifest, URL: "https://cdn.example.net/hls/abc/index-f1-v1-a1.m3u8?token=x"},
			wantOK: true,
		},
		{
			name:   "escaped path kept verbatim",
			url:    "https://cdn.example/a%2Fb/tok%3D/master.m3u8?x=1",
			want:   Record{Kind: KindManifest, URL: "https://cdn.example/a%2Fb/tok%3D/index-f1-v1-a1.m3u8?x=1"},
			wantOK: true,
		},
		{
			name:   "fragment kept",
			url:    "https://cdn.example.net/hls/abc/master.m3u8#t=10",
			want:   Record{Kind: KindManifest, URL: "https://cdn.example.net/hls/abc/index-f1-v1-a1.m3u8#t=10"},
			wantOK: true,
		},
		{
			name: "redundant player excluded",
			url:  "https://cdn.example.net/jwplayer6/abc/master.m3u8",
		},
		{
			name:   "subtitle",
			url:    "https://subs.example.net/abc/eng-2.vtt",
			want:   Record{Kind: KindSubtitle, URL: "https://subs.example.net/abc/eng-2.vtt"},
			wantOK: true,
		},
		{
			name: "segment ignored",
			url:  "https://cdn.example.net/hls/abc/seg-1-v1-a1.ts",
		},
		{
			name: "rendition not captured twice",
			url:  "https://cdn.example.net/hls/abc/index-f1-v1-a1.m3u8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rule.Match(tt.url)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord("m3u8:https://a.example/x/index.m3u8")
	require.NoError(t, err)
	assert.Equal(t, Record{Kind: KindManifest, URL: "https://a.example/x/index.m3u8"}, rec)
	assert.Equal(t, "m3u8:https://a.example/x/index.m3u8", rec.String())

	for _, line := range []string{"", "m3u8", "m3u8:", "mp4:https://a.example/v.mp4"} {
		_, err := ParseRecord(line)
		assert.ErrorIs(t, err, ErrMalformedRecord, line)
	}
}
