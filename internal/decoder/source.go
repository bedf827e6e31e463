// Package decoder runs the background decode loop: it reads compressed units
// from a stream, decodes video frames into pooled buffers and hands them to
// the consumer over a channel without ever blocking on it.
package decoder

import (
	"context"

	"github.com/smazurov/ffview/internal/frames"
)

// MediaType classifies a stream.
type MediaType int

// Media types.
const (
	MediaOther MediaType = iota
	MediaVideo
	MediaAudio
)

// StreamInfo describes one stream of an opened input.
type StreamInfo struct {
	Index       int
	Type        MediaType
	Codec       string
	Width       int
	Height      int
	PixelFormat frames.PixelFormat
}

// Unit is one compressed unit read from an input.
type Unit struct {
	StreamIndex int
	Data        []byte
}

// Source opens stream addresses.
type Source interface {
	Open(ctx context.Context, address string) (Input, error)
}

// Input is an opened stream. ReadUnit returns io.EOF at the end of the
// stream. Close must unblock a concurrent ReadUnit.
type Input interface {
	Streams() []StreamInfo
	FindDecoder(stream StreamInfo) (Codec, error)
	ReadUnit() (Unit, error)
	Close() error
}

// Codec decodes units of one stream. Decode returns false when the unit did
// not complete a frame. The returned frame data is only valid until the next
// call.
type Codec interface {
	Open() error
	Decode(unit Unit) (frames.Frame, bool, error)
	Close() error
}

// FirstVideoStream returns the first video stream of streams.
func FirstVideoStream(streams []StreamInfo) (StreamInfo, bool) {
	for _, s := range streams {
		if s.Type == MediaVideo {
			return s, true
		}
	}
	return StreamInfo{}, false
}
