package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/smazurov/ffview/internal/decoder"
	"github.com/smazurov/ffview/internal/ffmpeg"
	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/metrics/collectors"
	"github.com/smazurov/ffview/internal/process"
)

// ErrNotOpen is returned when reading before the codec was opened.
var ErrNotOpen = errors.New("codec not open")

// fallbackFormat is requested from ffmpeg when the stream's native pixel
// format has no converter.
const fallbackFormat = frames.FormatYUV420P

// FFmpeg probes streams with ffprobe and decodes them with an ffmpeg
// subprocess writing raw frames to stdout.
type FFmpeg struct {
	options     []ffmpeg.OptionType
	logLevel    string
	progressDir string
	logger      *slog.Logger
}

var progressSeq atomic.Uint64

// NewFFmpeg creates an ffmpeg source.
func NewFFmpeg(options []ffmpeg.OptionType, logLevel string) *FFmpeg {
	return &FFmpeg{
		options:  options,
		logLevel: logLevel,
		logger:   logging.GetLogger("source"),
	}
}

// SetProgressDir makes every decode report -progress blocks through a
// unix socket created in dir. An empty dir disables progress reporting.
func (s *FFmpeg) SetProgressDir(dir string) {
	s.progressDir = dir
}

// Probe lists the streams of address.
func (s *FFmpeg) Probe(ctx context.Context, address string) ([]decoder.StreamInfo, error) {
	p := process.New("ffprobe", ffmpeg.ProbeArgs(address, s.options), s.logger,
		process.WithLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel))
	out, err := p.Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", address, err)
	}
	streams, err := ffmpeg.ParseProbe(out)
	if err != nil {
		return nil, err
	}

	infos := make([]decoder.StreamInfo, 0, len(streams))
	for _, st := range streams {
		infos = append(infos, streamInfo(st))
	}
	return infos, nil
}

func streamInfo(st ffmpeg.Stream) decoder.StreamInfo {
	info := decoder.StreamInfo{
		Index:  st.Index,
		Codec:  st.CodecName,
		Width:  st.Width,
		Height: st.Height,
	}
	switch st.CodecType {
	case "video":
		info.Type = decoder.MediaVideo
	case "audio":
		info.Type = decoder.MediaAudio
	}
	if f, ok := frames.ParsePixelFormat(st.PixelFormat); ok {
		info.PixelFormat = f
	}
	return info
}

// Open probes address. Decoding starts when the codec is opened.
func (s *FFmpeg) Open(ctx context.Context, address string) (decoder.Input, error) {
	streams, err := s.Probe(ctx, address)
	if err != nil {
		return nil, err
	}
	return &ffmpegInput{source: s, ctx: ctx, address: address, streams: streams}, nil
}

type ffmpegInput struct {
	source  *FFmpeg
	ctx     context.Context
	address string
	streams []decoder.StreamInfo

	mu       sync.Mutex
	proc     *process.Process
	stdout   io.ReadCloser
	progress *collectors.ProgressCollector
	closed   bool

	stream    decoder.StreamInfo
	frameSize int
	buf       []byte
}

func (in *ffmpegInput) Streams() []decoder.StreamInfo {
	return in.streams
}

// FindDecoder returns a codec for stream. ffmpeg picks the actual decoder;
// this only checks that raw frames of the stream can be described.
func (in *ffmpegInput) FindDecoder(stream decoder.StreamInfo) (decoder.Codec, error) {
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("stream %d (%s) has unknown dimensions", stream.Index, stream.Codec)
	}
	format := stream.PixelFormat
	if format == frames.FormatNone {
		format = fallbackFormat
	}
	return &rawCodec{input: in, stream: stream, format: format}, nil
}

// ReadUnit reads one raw frame from the ffmpeg output.
func (in *ffmpegInput) ReadUnit() (decoder.Unit, error) {
	in.mu.Lock()
	stdout := in.stdout
	in.mu.Unlock()
	if stdout == nil {
		return decoder.Unit{}, ErrNotOpen
	}

	if _, err := io.ReadFull(stdout, in.buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return decoder.Unit{}, io.EOF
		}
		return decoder.Unit{}, err
	}
	return decoder.Unit{StreamIndex: in.stream.Index, Data: in.buf}, nil
}

// Close closes stdout, which unblocks a pending read, and stops ffmpeg.
func (in *ffmpegInput) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	proc, stdout, progress := in.proc, in.stdout, in.progress
	in.mu.Unlock()

	if progress != nil {
		if err := progress.Stop(); err != nil {
			in.source.logger.Debug("Failed to stop progress collector", "error", err)
		}
	}
	if stdout == nil {
		return nil
	}
	err := stdout.Close()
	if code := proc.Stop(); code != 0 && code != 255 {
		in.source.logger.Debug("ffmpeg exited", "address", in.address, "exit_code", code)
	}
	return err
}

func (in *ffmpegInput) start(stream decoder.StreamInfo, format frames.PixelFormat) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return errors.New("input closed")
	}

	params := ffmpeg.DecodeParams{
		Address:     in.address,
		StreamIndex: stream.Index,
		PixelFormat: format.String(),
		Options:     in.source.options,
		LogLevel:    in.source.logLevel,
	}
	if in.progress = in.startProgress(); in.progress != nil {
		params.ProgressSocket = in.progress.SocketPath()
	}
	args, err := ffmpeg.DecodeArgs(params)
	if err != nil {
		return err
	}

	proc := process.New("ffmpeg", args, in.source.logger,
		process.WithLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel))
	stdout, err := proc.Start(in.ctx)
	if err != nil {
		return err
	}

	in.proc = proc
	in.stdout = stdout
	in.stream = stream
	in.frameSize = format.FrameSize(stream.Width, stream.Height)
	in.buf = make([]byte, in.frameSize)
	return nil
}

// startProgress starts a progress collector when a progress directory is
// configured. Failures only cost the ffmpeg metrics.
func (in *ffmpegInput) startProgress() *collectors.ProgressCollector {
	if in.source.progressDir == "" {
		return nil
	}
	name := fmt.Sprintf("ffview-%d-%d.sock", os.Getpid(), progressSeq.Add(1))
	c := collectors.NewProgressCollector(filepath.Join(in.source.progressDir, name))
	if err := c.Start(in.ctx); err != nil {
		in.source.logger.Warn("Failed to start progress collector", "error", err)
		return nil
	}
	return c
}

// rawCodec describes the raw frames ffmpeg writes for one stream.
type rawCodec struct {
	input  *ffmpegInput
	stream decoder.StreamInfo
	format frames.PixelFormat
}

func (c *rawCodec) Open() error {
	return c.input.start(c.stream, c.format)
}

func (c *rawCodec) Decode(u decoder.Unit) (frames.Frame, bool, error) {
	if len(u.Data) != c.input.frameSize {
		return frames.Frame{}, false, nil
	}
	return frames.Frame{
		Format: c.format,
		Width:  c.stream.Width,
		Height: c.stream.Height,
		Data:   u.Data,
	}, true, nil
}

func (c *rawCodec) Close() error {
	return nil
}
