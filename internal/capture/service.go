package capture

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/util"
)

var (
	// ErrProxyStart means the proxy process could not be launched or never
	// started listening.
	ErrProxyStart = errors.New("proxy failed to start")
	// ErrProxyNotReaped means the proxy ignored termination and kill.
	ErrProxyNotReaped = errors.New("proxy process not reaped")
	// ErrBusy means a session is already active.
	ErrBusy = errors.New("capture session already active")
)

// Config describes how proxy sessions are launched.
type Config struct {
	Binary       string
	ListenHost   string
	Port         int // 0 picks a free port per session
	RuntimeDir   string
	StartTimeout time.Duration
	StopGrace    time.Duration
	Args         []string // appended after the listen options
	Rule         Rule
	PollInterval time.Duration
	SettleWindow time.Duration
}

// DefaultArgs are the mitmdump options used for capture.
func DefaultArgs() []string {
	return []string{
		"--quiet",
		"--set", "stream_large_bodies=1",
		"--set", "connection_strategy=lazy",
		"--ssl-insecure",
	}
}

// Service launches one proxy session at a time.
type Service struct {
	cfg Config

	mu     sync.Mutex
	ws     *Workspace
	active *Session
}

// NewService returns a proxy service. Nothing is launched until Start.
func NewService(cfg Config) *Service {
	if cfg.ListenHost == "" {
		cfg.ListenHost = "127.0.0.1"
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}
	return &Service{cfg: cfg}
}

// Start launches the proxy and waits until it accepts connections.
func (s *Service) Start(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, ErrBusy
	}

	if s.ws == nil {
		ws, err := OpenWorkspace(s.cfg.RuntimeDir)
		if err != nil {
			return nil, err
		}
		s.ws = ws
	}

	log := NewLog(s.ws.Dir())
	if err := log.Remove(); err != nil {
		return nil, err
	}

	addonPath, err := writeAddon(s.ws.Dir(), s.cfg.Rule, log.Path())
	if err != nil {
		return nil, err
	}

	port, err := s.port()
	if err != nil {
		return nil, errors.Wrap(ErrProxyStart, err.Error())
	}
	hostPort := net.JoinHostPort(s.cfg.ListenHost, strconv.Itoa(port))

	args := []string{"-s", addonPath, "--listen-host", s.cfg.ListenHost, "--listen-port", strconv.Itoa(port)}
	args = append(args, s.cfg.Args...)

	cmd := exec.Command(s.cfg.Binary, args...) // #nosec G204 - binary comes from configuration
	cmd.Dir = s.ws.Dir()
	if util.IsDebug {
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(ErrProxyStart, "%s: %v", s.cfg.Binary, err)
	}

	sess := &Session{
		cmd:      cmd,
		hostPort: hostPort,
		log:      log,
		grace:    s.cfg.StopGrace,
		done:     make(chan struct{}),
		correlator: NewCorrelator(log,
			WithPollInterval(s.cfg.PollInterval),
			WithSettleWindow(s.cfg.SettleWindow)),
	}
	go func() {
		sess.waitErr = cmd.Wait()
		close(sess.done)
	}()

	if err := sess.waitListening(ctx, s.cfg.StartTimeout); err != nil {
		if stopErr := sess.Stop(); stopErr != nil {
			util.Error("Proxy cleanup after failed start", "error", stopErr)
		}
		return nil, errors.Wrap(ErrProxyStart, err.Error())
	}

	sess.release = func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}
	s.active = sess
	util.Debug("Proxy session started", "addr", hostPort, "pid", cmd.Process.Pid)
	return sess, nil
}

// Close stops any active session and removes the run directory.
func (s *Service) Close() error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	var firstErr error
	if active != nil {
		firstErr = active.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.ws = nil
	return firstErr
}

func (s *Service) port() (int, error) {
	if s.cfg.Port > 0 {
		return s.cfg.Port, nil
	}
	l, err := net.Listen("tcp", net.JoinHostPort(s.cfg.ListenHost, "0"))
	if err != nil {
		return 0, errors.Wrap(err, "allocate proxy port")
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, errors.Wrap(err, "release probe listener")
	}
	return port, nil
}

// Session is a running proxy process and its capture log.
type Session struct {
	cmd        *exec.Cmd
	hostPort   string
	log        *Log
	correlator *Correlator
	grace      time.Duration

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
	release  func()
}

// Addr returns the proxy server URL for the browser.
func (s *Session) Addr() string {
	return "http://" + s.hostPort
}

// Correlator returns the correlator over this session's capture log.
func (s *Session) Correlator() *Correlator {
	return s.correlator
}

// Stop terminates the proxy, escalating to kill after the grace period, and
// removes any undrained capture records. It is safe to call more than once.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
		if s.release != nil {
			s.release()
		}
	})
	return s.stopErr
}

func (s *Session) stop() error {
	var reapErr error
	if !s.exited() {
		if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			util.Debug("SIGTERM not delivered, killing proxy", "error", err)
			_ = s.cmd.Process.Kill()
		}
		select {
		case <-s.done:
		case <-time.After(s.grace):
			util.Warn("Proxy ignored termination, killing", "pid", s.cmd.Process.Pid)
			_ = s.cmd.Process.Kill()
			select {
			case <-s.done:
			case <-time.After(s.grace):
				reapErr = errors.Wrapf(ErrProxyNotReaped, "pid %d", s.cmd.Process.Pid)
			}
		}
	}

	if err := s.log.Remove(); err != nil && reapErr == nil {
		return err
	}
	if reapErr == nil {
		util.Debug("Proxy session stopped", "addr", s.hostPort)
	}
	return reapErr
}

func (s *Session) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) waitListening(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", s.hostPort, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return fmt.Errorf("proxy exited before listening: %v", s.waitErr)
		case <-deadline.C:
			return fmt.Errorf("proxy not listening on %s after %s", s.hostPort, timeout)
		case <-ticker.C:
		}
	}
}
