package version

import (
	"fmt"
	"runtime"
)

const (
	Version = "0.4.0"
)

// Commit is set at build time with -ldflags "-X .../version.Commit=...".
var Commit = ""

// String renders the version line printed by `anistrm version`.
func String() string {
	v := "anistrm v" + Version
	if Commit != "" {
		v += " (" + Commit + ")"
	}
	return fmt.Sprintf("%s %s/%s %s", v, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
