package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.0.1", "1.0.0", true},
		{"v0.5.0", "0.4.0", true},
		{"0.4.0", "0.4.0", false},
		{"0.4", "0.4.0", false},
		{"0.4.1", "0.4", true},
		{"0.3.9", "0.4.0", false},
		{"v1.0.0-rc1", "0.9.0", true},
		{"0.10.0", "0.9.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.latest+"_vs_"+tt.current, func(t *testing.T) {
			got, err := IsNewer(tt.latest, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNewerInvalid(t *testing.T) {
	for _, v := range []string{"", "v", "1.x.0", "1..0"} {
		_, err := IsNewer(v, "0.1.0")
		assert.Error(t, err, v)
	}
}

func TestLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/releases/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"tag_name":"v9.0.0","name":"anistrm 9","html_url":"https://example/rel"}`))
	}))
	defer srv.Close()

	rel, newer, err := Checker{APIURL: srv.URL, Client: srv.Client()}.Latest(context.Background(), "0.4.0")
	require.NoError(t, err)
	assert.True(t, newer)
	assert.Equal(t, "v9.0.0", rel.TagName)
	assert.Equal(t, "https://example/rel", rel.HTMLURL)
}

func TestLatestErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad/releases/latest" {
			_, _ = w.Write([]byte("not json"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := Checker{APIURL: srv.URL, Client: srv.Client()}.Latest(context.Background(), "0.4.0")
	assert.Error(t, err)

	_, _, err = Checker{APIURL: srv.URL + "/bad", Client: srv.Client()}.Latest(context.Background(), "0.4.0")
	assert.Error(t, err)
}
