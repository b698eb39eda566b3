package config

import (
	"strings"

	"github.com/pkg/errors"
)

func (c *Config) normalize() error {
	var err error
	for name, p := range map[string]*string{
		"paths.work_dir":    &c.Paths.WorkDir,
		"paths.media_dir":   &c.Paths.MediaDir,
		"paths.runtime_dir": &c.Paths.RuntimeDir,
		"paths.history_db":  &c.Paths.HistoryDB,
	} {
		if *p, err = expandPath(strings.TrimSpace(*p)); err != nil {
			return errors.Wrap(err, name)
		}
	}

	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	c.Proxy.Binary = strings.TrimSpace(c.Proxy.Binary)
	c.Browser.Engine = strings.ToLower(strings.TrimSpace(c.Browser.Engine))

	markers := c.Capture.ExcludeMarkers[:0]
	for _, m := range c.Capture.ExcludeMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	c.Capture.ExcludeMarkers = markers
	if ext := strings.TrimSpace(c.Capture.SubtitleExtension); ext != "" && !strings.HasPrefix(ext, ".") {
		c.Capture.SubtitleExtension = "." + ext
	}
	return nil
}
