package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smazurov/ffview/internal/ffmpeg"
	"github.com/smazurov/ffview/internal/transform"
	"github.com/smazurov/ffview/internal/updater"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPaletteTable(t *testing.T) {
	out, err := run(t, CreatePaletteCmd(), "iron", "--color", "never")
	if err != nil {
		t.Fatalf("palette error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Header, levels 0..240 in steps of 16, then 255.
	if len(lines) != 18 {
		t.Errorf("got %d lines, want 18:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "LUMA") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[len(lines)-1], "255") {
		t.Errorf("last line = %q, want level 255", lines[len(lines)-1])
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("swatches printed with --color never")
	}
}

func TestPaletteSwatches(t *testing.T) {
	out, err := run(t, CreatePaletteCmd(), "rainbow", "--color", "always", "--step", "128")
	if err != nil {
		t.Fatalf("palette error = %v", err)
	}
	if got := strings.Count(out, "\x1b[48;2;"); got != 3 {
		t.Errorf("swatches = %d, want 3", got)
	}

	// auto never colours a buffer.
	out, err = run(t, CreatePaletteCmd(), "rainbow", "--step", "128")
	if err != nil {
		t.Fatalf("palette error = %v", err)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("swatches printed to a non-terminal with --color auto")
	}
}

func TestPaletteJSON(t *testing.T) {
	out, err := run(t, CreatePaletteCmd(), "iron", "-o", "json", "--step", "1")
	if err != nil {
		t.Fatalf("palette error = %v", err)
	}
	var entries []PaletteEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(entries) != 256 {
		t.Fatalf("len(entries) = %d, want 256", len(entries))
	}
	p := transform.PaletteFor(transform.ModeIron)
	for _, e := range []PaletteEntry{entries[0], entries[100], entries[255]} {
		if e.R != p.R[e.Index] || e.G != p.G[e.Index] || e.B != p.B[e.Index] || e.Y != p.Y[e.Index] {
			t.Errorf("entry %d = %+v, does not match the palette", e.Index, e)
		}
	}
}

func TestPaletteYAML(t *testing.T) {
	out, err := run(t, CreatePaletteCmd(), "rainbow", "--format", "yaml", "--step", "64")
	if err != nil {
		t.Fatalf("palette error = %v", err)
	}
	var entries []PaletteEntry
	if err := yaml.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	var idx []int
	for _, e := range entries {
		idx = append(idx, e.Index)
	}
	if want := []int{0, 64, 128, 192, 255}; !slices.Equal(idx, want) {
		t.Errorf("indexes = %v, want %v", idx, want)
	}
	p := transform.PaletteFor(transform.ModeRainbow)
	if e := paletteEntry(p, 64); entries[1].Hex != e.Hex {
		t.Errorf("hex = %q, want %q", entries[1].Hex, e.Hex)
	}
}

func TestPaletteErrors(t *testing.T) {
	tests := [][]string{
		{"off"},
		{"sepia"},
		{"iron", "--step", "0"},
		{"iron", "--format", "xml"},
		{"iron", "--color", "sometimes"},
		{},
	}
	for _, args := range tests {
		if _, err := run(t, CreatePaletteCmd(), args...); err == nil {
			t.Errorf("palette %v error = nil, want error", args)
		}
	}
}

func TestPaletteEntryHex(t *testing.T) {
	p := &transform.Palette{}
	p.R[7], p.G[7], p.B[7] = 0xff, 0x08, 0x00
	if got := paletteEntry(p, 7).Hex; got != "#ff0800" {
		t.Errorf("Hex = %q, want #ff0800", got)
	}
}

func TestProbeMJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	out, err := run(t, CreateProbeCmd(), "mjpeg+"+srv.URL, "-o", "json")
	if err != nil {
		t.Fatalf("probe error = %v", err)
	}
	var streams []ProbedStream
	if err := json.Unmarshal([]byte(out), &streams); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(streams) != 1 {
		t.Fatalf("len(streams) = %d, want 1", len(streams))
	}
	s := streams[0]
	if s.Type != "video" || s.Codec != "mjpeg" || s.Width != 64 || s.Height != 48 {
		t.Errorf("stream = %+v, want 64x48 mjpeg video", s)
	}
	if s.PixelFormat == "" {
		t.Error("pixel format not reported")
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const probeJSON = `{"streams": [
  {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "pix_fmt": "yuv420p"},
  {"index": 1, "codec_type": "audio", "codec_name": "aac"}
]}`

func TestProbeFFprobe(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "probe.json")
	if err := os.WriteFile(data, []byte(probeJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	probe := writeScript(t, dir, "ffprobe", "cat '"+data+"'\n")

	old := ffmpeg.FFprobeBinary
	ffmpeg.FFprobeBinary = probe
	defer func() { ffmpeg.FFprobeBinary = old }()

	out, err := run(t, CreateProbeCmd(), "rtsp://cam/stream")
	if err != nil {
		t.Fatalf("probe error = %v", err)
	}
	for _, want := range []string{"INDEX", "h264", "1920x1080", "yuv420p", "aac"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProbeErrors(t *testing.T) {
	dir := t.TempDir()
	probe := writeScript(t, dir, "ffprobe", "echo '[error] Connection refused' >&2\nexit 1\n")
	old := ffmpeg.FFprobeBinary
	ffmpeg.FFprobeBinary = probe
	defer func() { ffmpeg.FFprobeBinary = old }()

	tests := [][]string{
		{"rtsp://cam/stream"},
		{"rtsp://cam/stream", "--ffmpeg-options", "bogus"},
		{"rtsp://cam/stream", "--ffmpeg-options", "rtsp_tcp,rtsp_udp"},
		{},
	}
	for _, args := range tests {
		if _, err := run(t, CreateProbeCmd(), args...); err == nil {
			t.Errorf("probe %v error = nil, want error", args)
		}
	}
}

func TestUpdateFlagConflicts(t *testing.T) {
	tests := [][]string{
		{"--check", "--rollback"},
		{"--check", "--restart-unit", "ffview"},
		{"extra"},
	}
	for _, args := range tests {
		if _, err := run(t, CreateUpdateCmd(), args...); err == nil {
			t.Errorf("update %v error = nil, want error", args)
		}
	}
}

func TestWriteUpdateInfo(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		info updater.UpdateInfo
		want []string
	}{
		{
			name: "up to date",
			info: updater.UpdateInfo{CurrentVersion: "v1.2.0", LatestVersion: "1.2.0"},
			want: []string{"v1.2.0", "up to date"},
		},
		{
			name: "available",
			info: updater.UpdateInfo{
				CurrentVersion: "v1.1.0", LatestVersion: "1.2.0", UpdateAvailable: true,
				PublishedAt: published, ReleaseURL: "https://github.com/smazurov/ffview/releases/tag/v1.2.0",
			},
			want: []string{"update available", "2026-03-01", "releases/tag/v1.2.0"},
		},
		{
			name: "applied",
			info: updater.UpdateInfo{CurrentVersion: "v1.1.0", LatestVersion: "1.2.0", UpdateAvailable: true, Applied: true},
			want: []string{"updated, restart ffview to use it"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &cobra.Command{}
			c.SetOut(&out)
			if err := writeUpdateInfo(c, FormatTable, &tt.info); err != nil {
				t.Fatalf("writeUpdateInfo() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	if err := writeUpdateInfo(c, FormatJSON, &tests[1].info); err != nil {
		t.Fatal(err)
	}
	var got updater.UpdateInfo
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if !got.UpdateAvailable || got.LatestVersion != "1.2.0" {
		t.Errorf("json = %+v", got)
	}
}
