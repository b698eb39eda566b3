// Package config loads the TOML configuration of anistrm.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

//go:embed sample_config.toml
var sampleConfig string

const defaultConfigPath = "~/.config/anistrm/config.toml"

// Config is the full configuration.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Remote  Remote  `toml:"remote"`
	Proxy   Proxy   `toml:"proxy"`
	Capture Capture `toml:"capture"`
	Site    Site    `toml:"site"`
	Browser Browser `toml:"browser"`
	Publish Publish `toml:"publish"`
}

// Paths holds the on-disk roots.
type Paths struct {
	WorkDir    string `toml:"work_dir"`  // Sub/Dub manifests, committed to git
	MediaDir   string `toml:"media_dir"` // published .strm tree
	RuntimeDir string `toml:"runtime_dir"`
	HistoryDB  string `toml:"history_db"`
}

// Remote is where the working tree is served from.
type Remote struct {
	BaseURL string `toml:"base_url"`
}

// Proxy configures mitmdump.
type Proxy struct {
	Binary              string   `toml:"binary"`
	ListenHost          string   `toml:"listen_host"`
	Port                int      `toml:"port"`
	StartTimeoutSeconds int      `toml:"start_timeout_seconds"`
	StopGraceSeconds    int      `toml:"stop_grace_seconds"`
	Args                []string `toml:"args"`
}

// Capture configures matching and the bounded waits of the episode machine.
type Capture struct {
	MasterFilename        string   `toml:"master_filename"`
	RenditionFilename     string   `toml:"rendition_filename"`
	ExcludeMarkers        []string `toml:"exclude_markers"`
	SubtitleExtension     string   `toml:"subtitle_extension"`
	SegmentMarker         string   `toml:"segment_marker"`
	ReadyTimeoutSeconds   int      `toml:"ready_timeout_seconds"`
	CaptureTimeoutSeconds int      `toml:"capture_timeout_seconds"`
	PollIntervalMillis    int      `toml:"poll_interval_ms"`
	SettleWindowMillis    int      `toml:"settle_window_ms"`
}

// Site configures the catalogue.
type Site struct {
	BaseURL string `toml:"base_url"`
	Render  bool   `toml:"render"` // fetch pages through the browser instead of plain HTTP
}

// Browser configures playwright.
type Browser struct {
	Engine                   string `toml:"engine"`
	Headless                 bool   `toml:"headless"`
	Install                  bool   `toml:"install"`
	NavigationTimeoutSeconds int    `toml:"navigation_timeout_seconds"`
	ClickTimeoutSeconds      int    `toml:"click_timeout_seconds"`
	ReadySelector            string `toml:"ready_selector"`
	DubSelector              string `toml:"dub_selector"`
}

// Publish configures the git step.
type Publish struct {
	Git  bool `toml:"git"`
	Push bool `toml:"push"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    ".",
			MediaDir:   "~/Media/Anime",
			RuntimeDir: filepath.Join(os.TempDir(), "anistrm"),
			HistoryDB:  "~/.local/share/anistrm/history.db",
		},
		Proxy: Proxy{
			Binary:              "mitmdump",
			ListenHost:          "127.0.0.1",
			StartTimeoutSeconds: 10,
			StopGraceSeconds:    5,
		},
		Capture: Capture{
			MasterFilename:        "master.m3u8",
			RenditionFilename:     "index-f1-v1-a1.m3u8",
			ExcludeMarkers:        []string{"jwplayer6"},
			SubtitleExtension:     ".vtt",
			SegmentMarker:         "/seg-",
			ReadyTimeoutSeconds:   30,
			CaptureTimeoutSeconds: 20,
			PollIntervalMillis:    250,
			SettleWindowMillis:    1500,
		},
		Site: Site{
			BaseURL: "https://hianime.to",
			Render:  true,
		},
		Browser: Browser{
			Engine:                   "firefox",
			Headless:                 true,
			NavigationTimeoutSeconds: 60,
			ClickTimeoutSeconds:      10,
			ReadySelector:            ".video-wrapper",
			DubSelector:              `.servers-dub .item.server-item[data-type="dub"] a.btn`,
		},
		Publish: Publish{
			Git:  false,
			Push: true,
		},
	}
}

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses and validates the configuration. It returns the
// resolved path and whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved) // #nosec G304 - user supplied config path
		if err != nil {
			return nil, "", false, errors.Wrap(err, "open config")
		}
		defer func() { _ = file.Close() }()

		dec := toml.NewDecoder(file)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, "", false, errors.Wrapf(err, "parse config %s", resolved)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, errors.Wrap(err, "stat config")
		}
		return expanded, true, nil
	}

	userPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("anistrm.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(userPath); err == nil && !info.IsDir() {
		return userPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return userPath, false, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create config directory")
		}
	}
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("config already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return errors.Wrap(err, "write sample config")
	}
	return nil
}

// ProxyStartTimeout returns proxy.start_timeout_seconds as a duration.
func (c *Config) ProxyStartTimeout() time.Duration {
	return time.Duration(c.Proxy.StartTimeoutSeconds) * time.Second
}

func (c *Config) ProxyStopGrace() time.Duration {
	return time.Duration(c.Proxy.StopGraceSeconds) * time.Second
}

func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Capture.ReadyTimeoutSeconds) * time.Second
}

func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.CaptureTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Capture.PollIntervalMillis) * time.Millisecond
}

func (c *Config) SettleWindow() time.Duration {
	return time.Duration(c.Capture.SettleWindowMillis) * time.Millisecond
}

func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavigationTimeoutSeconds) * time.Second
}

func (c *Config) ClickTimeout() time.Duration {
	return time.Duration(c.Browser.ClickTimeoutSeconds) * time.Second
}

func expandPath(value string) (string, error) {
	if value == "" {
		return value, nil
	}
	if strings.HasPrefix(value, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		if value == "~" {
			value = home
		} else if len(value) > 1 && (value[1] == '/' || value[1] == '\\') {
			value = filepath.Join(home, value[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %q", value)
	}
	return abs, nil
}

// ExpandPath applies the config path rules (home expansion, absolute).
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}
