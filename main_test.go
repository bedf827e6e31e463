package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/ffview/internal/ffmpeg"
	"github.com/smazurov/ffview/internal/transform"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	return &Options{
		Config:           filepath.Join(t.TempDir(), "ffview.toml"),
		Port:             "127.0.0.1:0",
		OverlayMaxWidth:  2048,
		OverlayMaxHeight: 2048,
		FallbackLimit:    "100ms",
		PreviewQuality:   80,
		PreviewScaler:    "nearest",
		RawBuffers:       2,
		DisplayBuffers:   2,
		MaxWidth:         64,
		MaxHeight:        64,
		StopGrace:        "500ms",
		KillGrace:        "100ms",
		FfmpegLogLevel:   "warning",
		MirrorInterval:   "100ms",
		LoggingLevel:     "info",
		LoggingFormat:    "text",
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "100ms", want: 100 * time.Millisecond},
		{in: "2s", want: 2 * time.Second},
		{in: "0s", wantErr: true},
		{in: "-1s", wantErr: true},
		{in: "soon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDuration("test", tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSessionConfig(t *testing.T) {
	opts := testOptions(t)
	opts.FallbackLimit = "250ms"
	cfg, err := sessionConfig(opts)
	if err != nil {
		t.Fatalf("sessionConfig() error = %v", err)
	}
	if cfg.FallbackInterval != 250*time.Millisecond {
		t.Errorf("FallbackInterval = %v, want 250ms", cfg.FallbackInterval)
	}
	if cfg.RawBuffers != 2 || cfg.MaxWidth != 64 || cfg.Grace != 500*time.Millisecond {
		t.Errorf("sessionConfig() = %+v", cfg)
	}

	opts.KillGrace = "never"
	if _, err := sessionConfig(opts); err == nil {
		t.Error("sessionConfig() error = nil for a bad kill grace")
	}
}

func TestSourceConfig(t *testing.T) {
	opts := testOptions(t)
	cfg, err := sourceConfig(opts)
	if err != nil {
		t.Fatalf("sourceConfig() error = %v", err)
	}
	if len(cfg.FFmpegOptions) != len(ffmpeg.GetDefaultOptions()) {
		t.Errorf("FFmpegOptions = %v, want the defaults", cfg.FFmpegOptions)
	}
	if cfg.ProgressDir != "" {
		t.Errorf("ProgressDir = %q, want empty with progress off", cfg.ProgressDir)
	}

	opts.FfmpegOptions = "rtsp_tcp, nobuffer"
	opts.FfmpegProgress = true
	cfg, err = sourceConfig(opts)
	if err != nil {
		t.Fatalf("sourceConfig() error = %v", err)
	}
	if len(cfg.FFmpegOptions) != 2 || cfg.FFmpegOptions[0] != ffmpeg.OptionRTSPTCP {
		t.Errorf("FFmpegOptions = %v", cfg.FFmpegOptions)
	}
	if cfg.ProgressDir == "" {
		t.Error("ProgressDir empty with progress on")
	}

	for _, bad := range []string{"bogus", "rtsp_tcp,rtsp_udp"} {
		opts.FfmpegOptions = bad
		if _, err := sourceConfig(opts); err == nil {
			t.Errorf("sourceConfig(%q) error = nil", bad)
		}
	}
}

func TestLoggingConfig(t *testing.T) {
	opts := testOptions(t)
	if err := os.WriteFile(opts.Config, []byte("[logging]\nrender = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts.LoggingMirror = "warn"

	cfg := loggingConfig(opts)
	if cfg.Modules["render"] != "debug" {
		t.Errorf("render level = %q, want debug from the file", cfg.Modules["render"])
	}
	if cfg.Modules["mirror"] != "warn" {
		t.Errorf("mirror level = %q, want warn", cfg.Modules["mirror"])
	}
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("Level, Format = %q, %q", cfg.Level, cfg.Format)
	}
}

func TestNewViewerDefaultGrid(t *testing.T) {
	opts := testOptions(t)
	opts.Fallback = true
	v, err := newViewer(opts, []string{"rtsp://cam/stream"})
	if err != nil {
		t.Fatalf("newViewer() error = %v", err)
	}
	if v.mirror != nil {
		t.Error("mirror created without a mirror address")
	}
	s := v.view.Snapshot()
	if s.GridX != defaultGridX || s.GridY != defaultGridY || s.GridSpacing != defaultGridSpacing {
		t.Errorf("grid = %d,%d/%d, want %d,%d/%d", s.GridX, s.GridY, s.GridSpacing,
			defaultGridX, defaultGridY, defaultGridSpacing)
	}
	if v.view.Backend() != transform.BackendFallback {
		t.Errorf("backend = %v, want fallback", v.view.Backend())
	}
}

func TestNewViewerMirror(t *testing.T) {
	opts := testOptions(t)
	v, err := newViewer(opts, []string{"rtsp://cam/stream", "127.0.0.1:8091"})
	if err != nil {
		t.Fatalf("newViewer() error = %v", err)
	}
	if v.mirror == nil {
		t.Fatal("mirror not created")
	}
	if s := v.view.Snapshot(); s.GridX != 1 || s.GridY != 1 {
		t.Errorf("grid = %d,%d, want the remote to decide", s.GridX, s.GridY)
	}

	opts.MirrorInterval = "fast"
	if _, err := newViewer(opts, []string{"rtsp://cam/stream", "127.0.0.1:8091"}); err == nil {
		t.Error("newViewer() error = nil for a bad mirror interval")
	}
}

func TestNewViewerPreset(t *testing.T) {
	opts := testOptions(t)
	preset := "[view]\ngx = 50\ngrid = true\nfcol = \"iron\"\n"
	if err := os.WriteFile(opts.Config, []byte(preset), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := newViewer(opts, []string{"rtsp://cam/stream"})
	if err != nil {
		t.Fatalf("newViewer() error = %v", err)
	}
	s := v.view.Snapshot()
	if s.GridX != 50 || s.GridY != defaultGridY {
		t.Errorf("grid = %d,%d, want 50,%d", s.GridX, s.GridY, defaultGridY)
	}
	if !s.GridEnabled || s.FalseColor != transform.ModeIron {
		t.Errorf("grid enabled %v, false colour %v", s.GridEnabled, s.FalseColor)
	}
}

func TestNewViewerErrors(t *testing.T) {
	tests := map[string]func(*Options){
		"scaler":   func(o *Options) { o.PreviewScaler = "lanczos" },
		"grace":    func(o *Options) { o.StopGrace = "0" },
		"options":  func(o *Options) { o.FfmpegOptions = "bogus" },
		"interval": func(o *Options) { o.FallbackLimit = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			opts := testOptions(t)
			mutate(opts)
			if _, err := newViewer(opts, []string{"rtsp://cam/stream"}); err == nil {
				t.Error("newViewer() error = nil")
			}
		})
	}
}
