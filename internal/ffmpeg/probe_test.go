package ffmpeg

import "testing"

func TestParseProbe(t *testing.T) {
	data := []byte(`{
  "streams": [
    {"index": 0, "codec_type": "audio", "codec_name": "aac"},
    {"index": 1, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "pix_fmt": "yuvj420p", "avg_frame_rate": "25/1"}
  ]
}`)
	streams, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe() error = %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("len(streams) = %d, want 2", len(streams))
	}
	if streams[0].IsVideo() {
		t.Error("audio stream reported as video")
	}
	v := streams[1]
	if !v.IsVideo() || v.Index != 1 || v.CodecName != "h264" || v.Width != 1920 || v.Height != 1080 ||
		v.PixelFormat != "yuvj420p" || v.FrameRate != "25/1" {
		t.Errorf("video stream = %+v", v)
	}
}

func TestParseProbeErrors(t *testing.T) {
	if _, err := ParseProbe([]byte("Connection refused")); err == nil {
		t.Error("ParseProbe(text) error = nil, want error")
	}
	streams, err := ParseProbe([]byte(`{}`))
	if err != nil || len(streams) != 0 {
		t.Errorf("ParseProbe({}) = %v, %v, want no streams", streams, err)
	}
}
