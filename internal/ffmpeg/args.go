package ffmpeg

import (
	"fmt"
	"strconv"
)

// Binaries used to probe and decode streams.
var (
	FFmpegBinary  = "ffmpeg"
	FFprobeBinary = "ffprobe"
)

// DecodeParams describes a raw video decode of one stream.
type DecodeParams struct {
	Address     string
	StreamIndex int
	// PixelFormat is the ffmpeg name of the raw output format.
	PixelFormat string
	Options     []OptionType
	// LogLevel is the ffmpeg log level for stderr (default "warning").
	LogLevel string
	// ProgressSocket, when set, is a unix socket ffmpeg writes its
	// -progress key=value blocks to.
	ProgressSocket string
}

// ProbeArgs returns the ffprobe command line listing the streams of address
// as JSON.
func ProbeArgs(address string, options []OptionType) []string {
	args := []string{FFprobeBinary, "-hide_banner", "-loglevel", "level+error"}
	args = append(args, InputArgs(options)...)
	return append(args, "-of", "json", "-show_streams", address)
}

// DecodeArgs returns the ffmpeg command line decoding one video stream to
// raw frames on stdout.
func DecodeArgs(p DecodeParams) ([]string, error) {
	if p.Address == "" {
		return nil, fmt.Errorf("empty stream address")
	}
	if p.PixelFormat == "" {
		return nil, fmt.Errorf("empty pixel format")
	}
	level := p.LogLevel
	if level == "" {
		level = "warning"
	}

	args := []string{FFmpegBinary, "-hide_banner", "-nostdin", "-loglevel", "level+" + level}
	if p.ProgressSocket != "" {
		args = append(args, "-nostats", "-progress", "unix://"+p.ProgressSocket)
	}
	args = append(args, InputArgs(p.Options)...)
	args = append(args,
		"-i", p.Address,
		"-map", "0:"+strconv.Itoa(p.StreamIndex),
		"-an", "-sn", "-dn",
		"-f", "rawvideo",
		"-pix_fmt", p.PixelFormat,
		"pipe:1",
	)
	return args, nil
}
