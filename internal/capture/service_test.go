package capture

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "ANISTRM_FAKE_PROXY"

// TestMain lets the test binary stand in for mitmdump: when helperEnv is set
// it listens on --listen-port until terminated.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(fakeProxy(mode, os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeProxy(mode string, args []string) int {
	var host, port, addon string
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "--listen-host":
			host = args[i+1]
		case "--listen-port":
			port = args[i+1]
		case "-s":
			addon = args[i+1]
		}
	}
	if _, err := os.Stat(addon); err != nil {
		return 2
	}
	if mode == "crash" {
		return 3
	}

	if mode == "stubborn" {
		signal.Ignore(syscall.SIGTERM)
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return 4
	}
	defer func() { _ = l.Close() }()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	time.Sleep(time.Minute)
	return 0
}

func testService(t *testing.T, mode string) *Service {
	t.Helper()
	t.Setenv(helperEnv, mode)
	exe, err := os.Executable()
	require.NoError(t, err)

	svc := NewService(Config{
		Binary:       exe,
		RuntimeDir:   t.TempDir(),
		StartTimeout: 5 * time.Second,
		StopGrace:    500 * time.Millisecond,
		Rule:         DefaultRule(),
	})
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestServiceStartStop(t *testing.T) {
	svc := testService(t, "serve")

	sess, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.Addr(), "http://127.0.0.1:"))

	hostPort := strings.TrimPrefix(sess.Addr(), "http://")
	conn, err := net.Dial("tcp", hostPort)
	require.NoError(t, err)
	_ = conn.Close()

	_, err = svc.Start(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, sess.Correlator().log.Append(Record{Kind: KindManifest, URL: "stale"}))
	require.NoError(t, sess.Stop())
	require.NoError(t, sess.Stop(), "second stop is a no-op")

	_, err = os.Stat(sess.Correlator().log.Path())
	assert.True(t, os.IsNotExist(err), "undrained records are removed on stop")

	// The port is released and a new session can start.
	l, err := net.Listen("tcp", hostPort)
	require.NoError(t, err)
	_ = l.Close()

	next, err := svc.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, next.Stop())
}

func TestServiceKillsStubbornProxy(t *testing.T) {
	svc := testService(t, "stubborn")

	sess, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.NoError(t, sess.Stop())
}

func TestServiceStartFailures(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		svc := NewService(Config{
			Binary:     filepath.Join(t.TempDir(), "no-such-mitmdump"),
			RuntimeDir: t.TempDir(),
			Rule:       DefaultRule(),
		})
		defer func() { _ = svc.Close() }()

		_, err := svc.Start(context.Background())
		assert.ErrorIs(t, err, ErrProxyStart)
	})

	t.Run("exits before listening", func(t *testing.T) {
		svc := testService(t, "crash")
		_, err := svc.Start(context.Background())
		assert.ErrorIs(t, err, ErrProxyStart)
	})
}

func TestWorkspaceLifecycle(t *testing.T) {
	root := t.TempDir()

	live, err := OpenWorkspace(root)
	require.NoError(t, err)
	defer func() { _ = live.Close() }()

	stale := filepath.Join(root, runDirPrefix+"dead")
	require.NoError(t, os.Mkdir(stale, 0750))

	removed, err := PruneStale(root)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, live.Dir())

	require.NoError(t, live.Close())
	assert.NoDirExists(t, live.Dir())
}
