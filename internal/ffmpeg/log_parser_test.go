package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[error] Connection refused", "error", "Connection refused"},
		{"[warning] max delay reached", "warning", "max delay reached"},
		{"[h264 @ 0x55d0c8] [error] concealing 12 DC errors", "error", "[h264 @ 0x55d0c8] concealing 12 DC errors"},
		{"[rtsp @ 0x1234] [verbose] SDP:", "verbose", "[rtsp @ 0x1234] SDP:"},
		{"[rtsp @ 0x1234] no level here", "info", "[rtsp @ 0x1234] no level here"},
		{"plain output", "info", "plain output"},
		{"[x", "info", "[x"},
		{"", "info", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			level, msg := ParseLogLevel(tt.line)
			if level != tt.wantLevel || msg != tt.wantMsg {
				t.Errorf("ParseLogLevel(%q) = %q, %q, want %q, %q", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}
