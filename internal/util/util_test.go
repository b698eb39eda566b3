package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	body, err := FetchBytes(context.Background(), srv.Client(), srv.URL+"/index.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(body))

	_, err = FetchBytes(context.Background(), srv.Client(), srv.URL+"/missing")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestResponseCache(t *testing.T) {
	c := NewResponseCache(time.Hour, 2)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	got, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, "3", string(got))

	expired := NewResponseCache(time.Nanosecond, 4)
	expired.Set("k", []byte("v"))
	time.Sleep(time.Millisecond)
	_, ok = expired.Get("k")
	assert.False(t, ok)
}

func TestLoggerRespectsDebug(t *testing.T) {
	defer func(prev bool) { SetDebugMode(prev); InitLogger() }(IsDebug)

	var buf bytes.Buffer
	SetDebugMode(false)
	InitLoggerTo(&buf)
	Debug("hidden")
	Info("shown", "episode", "E001")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "E001")
}

func TestFormattedLogging(t *testing.T) {
	defer func(prev bool) { SetDebugMode(prev); InitLogger() }(IsDebug)

	var buf bytes.Buffer
	SetDebugMode(false)
	InitLoggerTo(&buf)
	Debugf("hidden %d", 1)
	Infof("saved %s", "E001")
	Warnf("cleanup failed: %v", errors.New("busy"))
	Errorf("refresh of %s failed", "Show")
	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "saved E001")
	assert.Contains(t, out, "cleanup failed: busy")
	assert.Contains(t, out, "refresh of Show failed")

	buf.Reset()
	SetDebugMode(true)
	InitLoggerTo(&buf)
	Debugf("spinner %s", "off")
	assert.Contains(t, buf.String(), "spinner off")
}

func TestSelectMenuItemRejectsEmpty(t *testing.T) {
	idx, item, err := SelectMenuItem("Pick", nil)
	assert.Error(t, err)
	assert.Equal(t, -1, idx)
	assert.Empty(t, item)
}

func TestErrorHandler(t *testing.T) {
	defer SetDebugMode(IsDebug)

	SetDebugMode(false)
	out := ErrorHandler(fmt.Errorf("boom"))
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "--debug")
}
