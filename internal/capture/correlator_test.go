package capture

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, log *Log, recs ...Record) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, log.Append(rec))
	}
}

func TestDrainKeepsFirstOfEachKind(t *testing.T) {
	log := NewLog(t.TempDir())
	writeRecords(t, log,
		Record{Kind: KindSubtitle, URL: "A"},
		Record{Kind: KindManifest, URL: "B"},
		Record{Kind: KindManifest, URL: "C"},
		Record{Kind: KindSubtitle, URL: "D"},
	)

	res, err := NewCorrelator(log).Drain()
	require.NoError(t, err)
	assert.Equal(t, Result{Manifest: "B", Subtitle: "A"}, res)

	_, err = os.Stat(log.Path())
	assert.True(t, os.IsNotExist(err), "log should be deleted after drain")
}

func TestDrainEmpty(t *testing.T) {
	log := NewLog(t.TempDir())

	res, err := NewCorrelator(log).Drain()
	require.NoError(t, err)
	assert.True(t, res.Empty())

	require.NoError(t, os.WriteFile(log.Path(), nil, 0600))
	res, err = NewCorrelator(log).Drain()
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestDrainSkipsMalformedLines(t *testing.T) {
	log := NewLog(t.TempDir())
	require.NoError(t, os.WriteFile(log.Path(), []byte("garbage\nvtt:S\n\nm3u8:M\n"), 0600))

	res, err := NewCorrelator(log).Drain()
	require.NoError(t, err)
	assert.Equal(t, Result{Manifest: "M", Subtitle: "S"}, res)
}

func TestAwaitReturnsOnceBothKindsArrive(t *testing.T) {
	log := NewLog(t.TempDir())
	c := NewCorrelator(log, WithPollInterval(10*time.Millisecond), WithSettleWindow(time.Second))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = log.Append(Record{Kind: KindManifest, URL: "M"})
		_ = log.Append(Record{Kind: KindSubtitle, URL: "S"})
	}()

	start := time.Now()
	res, err := c.Await(context.Background(), WantManifest|WantSubtitle, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Result{Manifest: "M", Subtitle: "S"}, res)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestAwaitSettlesWithoutSubtitle(t *testing.T) {
	log := NewLog(t.TempDir())
	writeRecords(t, log, Record{Kind: KindManifest, URL: "M"})
	c := NewCorrelator(log, WithPollInterval(10*time.Millisecond), WithSettleWindow(50*time.Millisecond))

	res, err := c.Await(context.Background(), WantManifest|WantSubtitle, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Result{Manifest: "M"}, res)
}

func TestAwaitTimeoutIsNotAnError(t *testing.T) {
	log := NewLog(t.TempDir())
	c := NewCorrelator(log, WithPollInterval(10*time.Millisecond))

	res, err := c.Await(context.Background(), WantManifest, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestAwaitCancelled(t *testing.T) {
	log := NewLog(t.TempDir())
	c := NewCorrelator(log, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Await(ctx, WantManifest, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
