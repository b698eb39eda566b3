package config

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.Paths.WorkDir == "":
		return errors.Wrap(ErrInvalid, "paths.work_dir is required")
	case c.Paths.MediaDir == "":
		return errors.Wrap(ErrInvalid, "paths.media_dir is required")
	case c.Paths.RuntimeDir == "":
		return errors.Wrap(ErrInvalid, "paths.runtime_dir is required")
	case c.Proxy.Binary == "":
		return errors.Wrap(ErrInvalid, "proxy.binary is required")
	case c.Proxy.Port < 0 || c.Proxy.Port > 65535:
		return errors.Wrapf(ErrInvalid, "proxy.port %d out of range", c.Proxy.Port)
	case c.Capture.MasterFilename == "" || c.Capture.RenditionFilename == "":
		return errors.Wrap(ErrInvalid, "capture.master_filename and capture.rendition_filename are required")
	case c.Capture.SegmentMarker == "":
		return errors.Wrap(ErrInvalid, "capture.segment_marker is required")
	case c.Browser.Engine != "firefox" && c.Browser.Engine != "chromium":
		return errors.Wrapf(ErrInvalid, "browser.engine %q must be firefox or chromium", c.Browser.Engine)
	case c.Publish.Git && c.Remote.BaseURL == "":
		return errors.Wrap(ErrInvalid, "publish.git needs remote.base_url")
	}

	for name, v := range map[string]int{
		"proxy.start_timeout_seconds":        c.Proxy.StartTimeoutSeconds,
		"proxy.stop_grace_seconds":           c.Proxy.StopGraceSeconds,
		"capture.ready_timeout_seconds":      c.Capture.ReadyTimeoutSeconds,
		"capture.capture_timeout_seconds":    c.Capture.CaptureTimeoutSeconds,
		"capture.poll_interval_ms":           c.Capture.PollIntervalMillis,
		"browser.navigation_timeout_seconds": c.Browser.NavigationTimeoutSeconds,
		"browser.click_timeout_seconds":      c.Browser.ClickTimeoutSeconds,
	} {
		if v <= 0 {
			return errors.Wrapf(ErrInvalid, "%s must be positive", name)
		}
	}
	if c.Capture.SettleWindowMillis < 0 {
		return errors.Wrap(ErrInvalid, "capture.settle_window_ms must not be negative")
	}
	if c.Remote.BaseURL != "" && !strings.HasPrefix(c.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Remote.BaseURL, "https://") {
		return errors.Wrapf(ErrInvalid, "remote.base_url %q must be an http(s) URL", c.Remote.BaseURL)
	}
	return nil
}
