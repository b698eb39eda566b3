package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBrowser struct {
	playwright.Browser
	closed atomic.Int32
}

func (b *stubBrowser) Close(...playwright.BrowserCloseOptions) error {
	b.closed.Add(1)
	return nil
}

func TestTimeoutMillis(t *testing.T) {
	got := timeoutMillis(context.Background(), 3*time.Second)
	require.NotNil(t, got)
	assert.Equal(t, 3000.0, *got)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	got = timeoutMillis(ctx, time.Minute)
	assert.LessOrEqual(t, *got, 500.0)
	assert.Greater(t, *got, 0.0)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, 1.0, *timeoutMillis(expired, time.Minute))
}

func TestNewLauncherDefaults(t *testing.T) {
	l := NewLauncher(Options{})
	assert.Equal(t, "firefox", l.opts.Engine)
	assert.Equal(t, StealthScript, l.opts.InitScript)
	assert.Equal(t, 60*time.Second, l.opts.NavigationTimeout)
	assert.NoError(t, l.Close(), "closing an unstarted launcher is a no-op")
}

func TestOpenHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLauncher(Options{}).Open(ctx, "http://127.0.0.1:1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlainBrowserLaunchesOnceUnderConcurrency(t *testing.T) {
	l := NewLauncher(Options{})
	var launches atomic.Int32
	stub := &stubBrowser{}
	l.launchFn = func(proxyAddr string) (playwright.Browser, error) {
		assert.Empty(t, proxyAddr)
		launches.Add(1)
		time.Sleep(10 * time.Millisecond)
		return stub, nil
	}

	const workers = 8
	got := make([]playwright.Browser, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := l.plainBrowser()
			assert.NoError(t, err)
			got[i] = b
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), launches.Load())
	for _, b := range got {
		assert.Same(t, stub, b)
	}

	require.NoError(t, l.Close())
	assert.Equal(t, int32(1), stub.closed.Load())
}
