package version

import "runtime/debug"

// These vars are set at build time via:
//
//	go build -ldflags "-X shelfdb/version.Tag=v1.0.0 -X shelfdb/version.GitCommit=abc1234 -X shelfdb/version.BuildTime=2026-02-26T00:00:00Z"
var (
	Tag       = "dev"
	GitCommit = "" // empty = auto-detect from build info
	BuildTime = "" // empty = auto-detect from build info
)

// Info is the resolved build metadata.
type Info struct {
	Tag       string
	Commit    string
	BuildTime string
	GoVersion string
}

// Get resolves the build metadata, falling back to the VCS settings the Go
// toolchain embeds when the ldflags were not set.
func Get() Info {
	info := Info{Tag: Tag, Commit: GitCommit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" && len(s.Value) >= 8 {
					info.Commit = s.Value[:8]
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

// ServerVersion is the value reported in the server_version startup
// parameter. Clients parse it as a PostgreSQL version, so it leads with one.
func ServerVersion() string {
	return "15.0 (shelfdb " + Tag + ")"
}

func String() string {
	i := Get()
	return "shelfdb " + i.Tag + " (commit " + i.Commit + ", built " + i.BuildTime + ")"
}
