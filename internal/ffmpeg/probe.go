package ffmpeg

import (
	"encoding/json"
	"fmt"
)

// Stream is one stream reported by ffprobe.
type Stream struct {
	Index       int    `json:"index"`
	CodecType   string `json:"codec_type"`
	CodecName   string `json:"codec_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	PixelFormat string `json:"pix_fmt"`
	FrameRate   string `json:"avg_frame_rate"`
}

// IsVideo reports whether s is a video stream.
func (s Stream) IsVideo() bool {
	return s.CodecType == "video"
}

type probeOutput struct {
	Streams []Stream `json:"streams"`
}

// ParseProbe parses the JSON output of ffprobe -show_streams.
func ParseProbe(data []byte) ([]Stream, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return out.Streams, nil
}
