// Package buildinfo reports how the running binary was built, using the
// module and VCS stamps the Go toolchain embeds.
package buildinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type Info struct {
	Package    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (i Info) String() string {
	mod := ""
	if i.Modified {
		mod = " The working tree was dirty at build time."
	}

	return fmt.Sprintf("This %s binary was built with %s at commit %s (%s).%s",
		i.Package, i.GoVersion, i.Commit, i.CommitTime, mod)
}

// Get reads the build stamps. Binaries built outside a module or without
// VCS metadata yield zero fields.
func Get() Info {
	out := Info{}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = bi.GoVersion
	out.Package = bi.Path
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

// PrintToStderr announces the build on startup without polluting stdout,
// which the command line tools reserve for data.
func PrintToStderr() {
	fmt.Fprintf(os.Stderr, "%s\n", Get())
}
