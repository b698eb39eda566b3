package main

import (
	"strings"
	"sync"

	"github.com/alvarorichard/anistrm/internal/browser"
	"github.com/alvarorichard/anistrm/internal/capture"
	"github.com/alvarorichard/anistrm/internal/config"
	"github.com/alvarorichard/anistrm/internal/hls"
	"github.com/alvarorichard/anistrm/internal/orchestrator"
	"github.com/alvarorichard/anistrm/internal/output"
	"github.com/alvarorichard/anistrm/internal/publish"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/state"
	"github.com/alvarorichard/anistrm/internal/tracking"
	"github.com/alvarorichard/anistrm/internal/util"
)

// commandContext lazily builds what a command needs and tears it down once
// the command returns.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	launcher *browser.Launcher
	proxy    *capture.Service
	history  *tracking.History
	catalog  *site.Catalog
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if exists {
			util.Debug("Loaded configuration", "path", resolved)
		} else {
			util.Debug("No configuration file, using defaults", "path", resolved)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) layout() output.Layout {
	return output.Layout{
		WorkRoot:   c.config.Paths.WorkDir,
		MediaRoot:  c.config.Paths.MediaDir,
		RemoteBase: c.config.Remote.BaseURL,
	}
}

func (c *commandContext) store() *state.Store {
	return state.NewStore(c.layout())
}

func (c *commandContext) browserLauncher() *browser.Launcher {
	if c.launcher == nil {
		cfg := c.config
		c.launcher = browser.NewLauncher(browser.Options{
			Engine:            cfg.Browser.Engine,
			Headless:          cfg.Browser.Headless,
			NavigationTimeout: cfg.NavigationTimeout(),
			ClickTimeout:      cfg.ClickTimeout(),
			ReadySelector:     cfg.Browser.ReadySelector,
			DubSelector:       cfg.Browser.DubSelector,
			Install:           cfg.Browser.Install,
		})
	}
	return c.launcher
}

func (c *commandContext) siteCatalog() *site.Catalog {
	if c.catalog == nil {
		var fetcher site.Fetcher = site.HTTPFetcher{}
		if c.config.Site.Render {
			fetcher = c.browserLauncher()
		}
		c.catalog = site.NewCatalog(fetcher, c.config.Site.BaseURL)
	}
	return c.catalog
}

// openHistory returns nil when the database cannot be opened; capture runs
// without history then.
func (c *commandContext) openHistory() *tracking.History {
	if c.history == nil {
		h, err := tracking.Open(c.config.Paths.HistoryDB)
		if err != nil {
			util.Warn("Capture history disabled", "path", c.config.Paths.HistoryDB, "error", err)
			return nil
		}
		c.history = h
	}
	return c.history
}

func (c *commandContext) orchestrator() *orchestrator.Orchestrator {
	cfg := c.config

	if removed, err := capture.PruneStale(cfg.Paths.RuntimeDir); err != nil {
		util.Warn("Could not prune stale capture directories", "error", err)
	} else if removed > 0 {
		util.Info("Removed stale capture directories", "count", removed)
	}

	args := cfg.Proxy.Args
	if len(args) == 0 {
		args = capture.DefaultArgs()
	}
	c.proxy = capture.NewService(capture.Config{
		Binary:       cfg.Proxy.Binary,
		ListenHost:   cfg.Proxy.ListenHost,
		Port:         cfg.Proxy.Port,
		RuntimeDir:   cfg.Paths.RuntimeDir,
		StartTimeout: cfg.ProxyStartTimeout(),
		StopGrace:    cfg.ProxyStopGrace(),
		Args:         args,
		Rule: capture.Rule{
			MasterFilename:    cfg.Capture.MasterFilename,
			RenditionFilename: cfg.Capture.RenditionFilename,
			ExcludeMarkers:    cfg.Capture.ExcludeMarkers,
			SubtitleExtension: cfg.Capture.SubtitleExtension,
		},
		PollInterval: cfg.PollInterval(),
		SettleWindow: cfg.SettleWindow(),
	})

	layout := c.layout()
	deps := orchestrator.Deps{
		Proxy:     proxyStarter{svc: c.proxy},
		Browser:   browserOpener{launcher: c.browserLauncher()},
		Manifests: hls.NewRewriter(nil, cfg.Capture.SegmentMarker),
		Subtitles: orchestrator.HTTPSubtitles{},
		Layout:    layout,
		Store:     state.NewStore(layout),
	}
	if h := c.openHistory(); h != nil {
		deps.Recorder = h
	}
	return orchestrator.New(deps, orchestrator.Config{
		ReadyTimeout:   cfg.ReadyTimeout(),
		CaptureTimeout: cfg.CaptureTimeout(),
	})
}

func (c *commandContext) gitPublisher() publish.Git {
	return publish.Git{
		Dir:   c.config.Paths.WorkDir,
		Paths: []string{string(output.BranchSub), string(output.BranchDub)},
		Push:  c.config.Publish.Push,
	}
}

func (c *commandContext) close() error {
	var firstErr error
	if c.proxy != nil {
		if err := c.proxy.Close(); err != nil {
			firstErr = err
		}
		c.proxy = nil
	}
	if c.launcher != nil {
		if err := c.launcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.launcher = nil
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.history = nil
	}
	return firstErr
}
