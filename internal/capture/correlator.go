package capture

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alvarorichard/anistrm/internal/util"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultSettleWindow = 1500 * time.Millisecond
)

// Want selects the record kinds Await waits for.
type Want uint8

const (
	WantManifest Want = 1 << iota
	WantSubtitle
)

// Result holds the first manifest and first subtitle URL of a drained log.
// Empty fields mean nothing of that kind was captured.
type Result struct {
	Manifest string
	Subtitle string
}

// Empty reports whether nothing was captured.
func (r Result) Empty() bool {
	return r.Manifest == "" && r.Subtitle == ""
}

// Correlator reads and drains a capture log.
type Correlator struct {
	log          *Log
	pollInterval time.Duration
	settle       time.Duration
}

// CorrelatorOption tunes Await.
type CorrelatorOption func(*Correlator)

// WithPollInterval sets how often the log is re-read while waiting.
func WithPollInterval(d time.Duration) CorrelatorOption {
	return func(c *Correlator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSettleWindow sets how long Await keeps waiting for a subtitle once the
// manifest has landed.
func WithSettleWindow(d time.Duration) CorrelatorOption {
	return func(c *Correlator) {
		if d >= 0 {
			c.settle = d
		}
	}
}

// NewCorrelator returns a correlator over log.
func NewCorrelator(log *Log, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		log:          log,
		pollInterval: defaultPollInterval,
		settle:       defaultSettleWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Drain reads the log, keeps the first record of each kind and deletes the
// log. Player bitrate probing can issue several manifest requests; the first
// one follows navigation order and wins.
func (c *Correlator) Drain() (Result, error) {
	records, err := c.log.Read()
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, rec := range records {
		switch rec.Kind {
		case KindManifest:
			if res.Manifest == "" {
				res.Manifest = rec.URL
			}
		case KindSubtitle:
			if res.Subtitle == "" {
				res.Subtitle = rec.URL
			}
		}
	}

	if err := c.log.Remove(); err != nil {
		return res, err
	}
	return res, nil
}

// Await blocks until the wanted kinds have been captured or timeout elapses,
// then drains the log. Reaching the timeout is not an error; missing kinds
// are left empty.
func (c *Correlator) Await(ctx context.Context, want Want, timeout time.Duration) (Result, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var events chan fsnotify.Event
	var watchErrs chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		util.Debug("fsnotify unavailable, polling capture log", "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(filepath.Dir(c.log.Path())); err != nil {
			util.Debug("Cannot watch capture directory, polling", "error", err)
		} else {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var manifestAt time.Time
wait:
	for {
		if c.satisfied(want, &manifestAt) {
			break
		}
		select {
		case <-waitCtx.Done():
			break wait
		case <-ticker.C:
		case ev := <-events:
			if filepath.Base(ev.Name) != LogFilename {
				continue
			}
		case err := <-watchErrs:
			util.Debug("Capture watcher error", "error", err)
		}
	}

	res, err := c.Drain()
	if err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func (c *Correlator) satisfied(want Want, manifestAt *time.Time) bool {
	records, err := c.log.Read()
	if err != nil {
		util.Debug("Capture log not readable yet", "error", err)
		return false
	}

	var haveManifest, haveSubtitle bool
	for _, rec := range records {
		switch rec.Kind {
		case KindManifest:
			haveManifest = true
		case KindSubtitle:
			haveSubtitle = true
		}
	}

	if want&WantManifest != 0 && !haveManifest {
		return false
	}
	if want&WantSubtitle != 0 && !haveSubtitle {
		if want&WantManifest == 0 {
			return false
		}
		// The subtitle request usually trails the manifest by a moment.
		if manifestAt.IsZero() {
			*manifestAt = time.Now()
		}
		return time.Since(*manifestAt) >= c.settle
	}
	return true
}
