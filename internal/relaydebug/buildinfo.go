package relaydebug

import (
	"runtime"
	"runtime/debug"
	"strconv"
)

// BuildInfo describes the running binary. It is served at /debug/version.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Go      string `json:"go"`
}

// BuildCommit reports the stamped vcs.revision according to debug.ReadBuildInfo,
// including a suffix indicating whether the working tree had uncommitted changes.
//
// Note that this will report "unknown" if using "go run".
// Use "go build" to compile to a binary to see the proper commit reported.
func BuildCommit() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown (built without module support?)"
	}

	rev := "unknown"
	dirty := false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			if d, err := strconv.ParseBool(s.Value); err == nil {
				dirty = d
			}
		}
	}

	if dirty {
		return rev + " (dirty)"
	}
	return rev
}

// DependencyVersion returns the version of the module at path the binary was
// built with, or "(unable to determine)".
func DependencyVersion(path string) string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if dep.Path == path {
				return dep.Version
			}
		}
	}
	return "(unable to determine)"
}

func goVersion() string {
	return runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
}
