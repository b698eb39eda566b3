package capture

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"text/template"

	"github.com/pkg/errors"
)

// AddonFilename is the mitmdump script written into each session directory.
const AddonFilename = "capture_addon.py"

var addonTemplate = template.Must(template.New("addon").Parse(`import json
from urllib.parse import urlparse, urlunparse

from mitmproxy import http

RULE = json.loads({{.Rule}})
LOG_PATH = {{.LogPath}}


def _append(kind, url):
    with open(LOG_PATH, "a", encoding="utf-8") as f:
        f.write("{}:{}\n".format(kind, url))


def response(flow: http.HTTPFlow):
    url = flow.request.url
    parsed = urlparse(url)
    master = RULE["master_filename"]
    excluded = any(m and m in url for m in RULE["exclude_markers"] or [])
    if master and parsed.path.endswith(master) and not excluded:
        path = parsed.path[: -len(master)] + RULE["rendition_filename"]
        _append("{{.ManifestKind}}", urlunparse(parsed._replace(path=path)))
    elif RULE["subtitle_extension"] and parsed.path.endswith(RULE["subtitle_extension"]):
        _append("{{.SubtitleKind}}", url)
`))

// RenderAddon returns the mitmdump addon implementing rule and appending to
// logPath.
func RenderAddon(rule Rule, logPath string) ([]byte, error) {
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return nil, errors.Wrap(err, "encode capture rule")
	}
	// JSON string literals are valid Python string literals.
	quotedRule, err := json.Marshal(string(ruleJSON))
	if err != nil {
		return nil, errors.Wrap(err, "quote capture rule")
	}
	quotedPath, err := json.Marshal(logPath)
	if err != nil {
		return nil, errors.Wrap(err, "quote log path")
	}

	var buf bytes.Buffer
	err = addonTemplate.Execute(&buf, map[string]string{
		"Rule":         string(quotedRule),
		"LogPath":      string(quotedPath),
		"ManifestKind": string(KindManifest),
		"SubtitleKind": string(KindSubtitle),
	})
	if err != nil {
		return nil, errors.Wrap(err, "render addon")
	}
	return buf.Bytes(), nil
}

func writeAddon(dir string, rule Rule, logPath string) (string, error) {
	script, err := RenderAddon(rule, logPath)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, AddonFilename)
	if err := os.WriteFile(path, script, 0600); err != nil {
		return "", errors.Wrap(err, "write addon")
	}
	return path, nil
}
