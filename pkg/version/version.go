package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Version is overridden with -ldflags "-X github.com/sjzar/mcpd/pkg/version.Version=..."
	Version   = "(dev)"
	Revision  = ""
	buildInfo = debug.BuildInfo{}
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		buildInfo = *bi
		if Version == "(dev)" && len(bi.Main.Version) > 0 && bi.Main.Version != "(devel)" {
			Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && Revision == "" {
				Revision = s.Value
			}
		}
	}
}

// Short is the version plus an abbreviated vcs revision when known.
func Short() string {
	if len(Revision) >= 7 {
		return Version + "+" + Revision[:7]
	}
	return Version
}

func GetMore(mod bool) string {
	if mod {
		mod := buildInfo.String()
		if len(mod) > 0 {
			return fmt.Sprintf("\t%s\n", strings.ReplaceAll(mod[:len(mod)-1], "\n", "\n\t"))
		}
	}
	return fmt.Sprintf("mcpd %s %s %s/%s\n", Short(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
