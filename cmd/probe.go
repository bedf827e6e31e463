package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffview/internal/decoder"
	"github.com/smazurov/ffview/internal/ffmpeg"
	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/source"
)

// maxProbeUnits bounds the units read to learn the size of a stream whose
// dimensions are only known after decoding.
const maxProbeUnits = 30

// ProbedStream is one stream reported by the probe command.
type ProbedStream struct {
	Index       int    `json:"index" yaml:"index"`
	Type        string `json:"type" yaml:"type"`
	Codec       string `json:"codec" yaml:"codec"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`
	PixelFormat string `json:"pix_fmt,omitempty" yaml:"pix_fmt,omitempty"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var format string
	var timeout time.Duration
	var options []string

	cmd := &cobra.Command{
		Use:   "probe <address>",
		Short: "List the streams of a source address",
		Long: `Opens the address the same way the viewer does and prints its streams. ` +
			`Addresses starting with mjpeg+http:// are read directly; everything else goes through ffprobe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ffmpeg.GetDefaultOptions()
			if len(options) > 0 {
				var err error
				if opts, err = ffmpeg.ParseOptions(options); err != nil {
					return err
				}
				if err := ffmpeg.ValidateOptions(opts); err != nil {
					return err
				}
			}
			router := source.NewRouter(source.Config{FFmpegOptions: opts, FFmpegLogLevel: "error"})

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			streams, err := probeAddress(ctx, router, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, streams, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "INDEX\tTYPE\tCODEC\tSIZE\tPIX_FMT")
				for _, s := range streams {
					size := "-"
					if s.Width > 0 && s.Height > 0 {
						size = fmt.Sprintf("%dx%d", s.Width, s.Height)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Index, s.Type, s.Codec, size, s.PixelFormat)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", FormatTable, "Output format (table, json, yaml)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Give up after this long")
	cmd.Flags().StringSliceVar(&options, "ffmpeg-options", nil, "ffmpeg input options (default: app defaults)")
	return cmd
}

// probeAddress opens address and lists its streams. Video streams without
// known dimensions are sized by decoding their first frame.
func probeAddress(ctx context.Context, src decoder.Source, address string) ([]ProbedStream, error) {
	logger := logging.GetLogger("probe")

	in, err := src.Open(ctx, address)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	// Close the input when the deadline passes so a blocked read returns.
	stop := context.AfterFunc(ctx, func() { in.Close() })
	defer stop()

	infos := in.Streams()
	streams := make([]ProbedStream, 0, len(infos))
	for _, info := range infos {
		if info.Type == decoder.MediaVideo && (info.Width <= 0 || info.Height <= 0) {
			if err := measure(in, &info); err != nil {
				logger.Warn("Could not size stream", "index", info.Index, "error", err)
			}
		}
		s := ProbedStream{
			Index:  info.Index,
			Type:   mediaTypeName(info.Type),
			Codec:  info.Codec,
			Width:  info.Width,
			Height: info.Height,
		}
		if info.PixelFormat != frames.FormatNone {
			s.PixelFormat = info.PixelFormat.String()
		}
		streams = append(streams, s)
	}
	return streams, nil
}

func measure(in decoder.Input, info *decoder.StreamInfo) error {
	codec, err := in.FindDecoder(*info)
	if err != nil {
		return err
	}
	if err := codec.Open(); err != nil {
		return err
	}
	defer codec.Close()

	for range maxProbeUnits {
		unit, err := in.ReadUnit()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("stream ended before a frame was decoded")
			}
			return err
		}
		if unit.StreamIndex != info.Index {
			continue
		}
		frame, ok, err := codec.Decode(unit)
		if err != nil {
			return err
		}
		if ok {
			info.Width, info.Height = frame.Width, frame.Height
			info.PixelFormat = frame.Format
			return nil
		}
	}
	return fmt.Errorf("no frame in %d units", maxProbeUnits)
}

func mediaTypeName(t decoder.MediaType) string {
	switch t {
	case decoder.MediaVideo:
		return "video"
	case decoder.MediaAudio:
		return "audio"
	}
	return "other"
}
