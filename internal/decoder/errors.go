package decoder

import (
	"errors"
	"fmt"
)

// Open stages, used in logs and OpenError.
const (
	StageOpenInput   = "open_input"
	StageFindStream  = "find_stream"
	StageFindDecoder = "find_decoder"
	StageOpenCodec   = "open_codec"
)

var (
	ErrOpenInput      = errors.New("could not open input")
	ErrNoVideoStream  = errors.New("no video stream")
	ErrNoDecoder      = errors.New("no decoder for stream")
	ErrOpenCodec      = errors.New("could not open codec")
	ErrAlreadyStarted = errors.New("decoder already started")
)

// OpenError reports a failure to set up decoding. It matches both the stage
// sentinel and the underlying error with errors.Is.
type OpenError struct {
	Stage   string
	Address string
	Err     error
}

func (e *OpenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Address, e.sentinel())
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Stage, e.Address, e.sentinel(), e.Err)
}

func (e *OpenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *OpenError) sentinel() error {
	switch e.Stage {
	case StageFindStream:
		return ErrNoVideoStream
	case StageFindDecoder:
		return ErrNoDecoder
	case StageOpenCodec:
		return ErrOpenCodec
	default:
		return ErrOpenInput
	}
}
