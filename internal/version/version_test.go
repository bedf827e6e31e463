package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/smazurov/ffview", Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-02-01T10:00:00Z"},
		},
	}
	defaults := Info{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"}

	tests := []struct {
		name string
		info Info
		bi   *debug.BuildInfo
		want Info
	}{
		{"no build info", defaults, nil, defaults},
		{"fills defaults", defaults, bi, Info{Version: "v1.4.0", GitCommit: "abc123", BuildDate: "2026-02-01T10:00:00Z"}},
		{
			"ldflags win",
			Info{Version: "v2.0.0", GitCommit: "def456", BuildDate: "2026-03-01"},
			bi,
			Info{Version: "v2.0.0", GitCommit: "def456", BuildDate: "2026-03-01"},
		},
		{
			"devel module version",
			defaults,
			&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			defaults,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fromBuildInfo(tt.info, tt.bi); got != tt.want {
				t.Errorf("fromBuildInfo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.GoVersion == "" || info.Platform == "" {
		t.Errorf("Get() = %+v, want version, go version and platform set", info)
	}
	if String() != info.Version {
		t.Errorf("String() = %q, want %q", String(), info.Version)
	}
}
