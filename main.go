package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/ffview/cmd"
	"github.com/smazurov/ffview/internal/config"
	"github.com/smazurov/ffview/internal/ffmpeg"
	"github.com/smazurov/ffview/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"ffview.toml"`

	// Server settings
	Port         string `help:"Address the HTTP API listens on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// View settings
	Fallback         bool   `help:"Present RGB frames and draw the grid at paint time" short:"f" default:"false" toml:"view.fallback" env:"VIEW_FALLBACK"`
	WidgetWidth      int    `help:"Preview width in pixels, 0 follows the image" default:"0" toml:"view.widget_width" env:"VIEW_WIDGET_WIDTH"`
	WidgetHeight     int    `help:"Preview height in pixels, 0 follows the image" default:"0" toml:"view.widget_height" env:"VIEW_WIDGET_HEIGHT"`
	OverlayMaxWidth  int    `help:"Largest frame width the overlay backend presents" default:"2048" toml:"view.overlay_max_width" env:"VIEW_OVERLAY_MAX_WIDTH"`
	OverlayMaxHeight int    `help:"Largest frame height the overlay backend presents" default:"2048" toml:"view.overlay_max_height" env:"VIEW_OVERLAY_MAX_HEIGHT"`
	FallbackLimit    string `help:"Shortest time between frames in fallback mode" default:"100ms" toml:"view.fallback_interval" env:"VIEW_FALLBACK_INTERVAL"`

	// Preview settings
	PreviewQuality int    `help:"JPEG quality of the preview stream" default:"80" toml:"preview.quality" env:"PREVIEW_QUALITY"`
	PreviewScaler  string `help:"Preview scaler (nearest, bilinear, catmullrom)" default:"nearest" toml:"preview.scaler" env:"PREVIEW_SCALER"`

	// Pipeline settings
	RawBuffers     int    `help:"Raw frame buffers" default:"20" toml:"pipeline.raw_buffers" env:"PIPELINE_RAW_BUFFERS"`
	DisplayBuffers int    `help:"Display frame buffers" default:"20" toml:"pipeline.display_buffers" env:"PIPELINE_DISPLAY_BUFFERS"`
	MaxWidth       int    `help:"Largest frame width the buffers hold" default:"4000" toml:"pipeline.max_width" env:"PIPELINE_MAX_WIDTH"`
	MaxHeight      int    `help:"Largest frame height the buffers hold" default:"3000" toml:"pipeline.max_height" env:"PIPELINE_MAX_HEIGHT"`
	StopGrace      string `help:"How long a stopping decoder may finish its current unit" default:"500ms" toml:"pipeline.stop_grace" env:"PIPELINE_STOP_GRACE"`
	KillGrace      string `help:"How long to wait after forcing a decoder to stop" default:"100ms" toml:"pipeline.kill_grace" env:"PIPELINE_KILL_GRACE"`

	// FFmpeg settings
	FfmpegPath     string `help:"ffmpeg binary" default:"ffmpeg" toml:"ffmpeg.path" env:"FFMPEG_PATH"`
	FfprobePath    string `help:"ffprobe binary" default:"ffprobe" toml:"ffmpeg.probe_path" env:"FFMPEG_PROBE_PATH"`
	FfmpegOptions  string `help:"Comma separated ffmpeg input options (empty uses the defaults)" default:"" toml:"ffmpeg.options" env:"FFMPEG_OPTIONS"`
	FfmpegLogLevel string `help:"ffmpeg log level" default:"warning" toml:"ffmpeg.log_level" env:"FFMPEG_LOG_LEVEL"`
	FfmpegProgress bool   `help:"Collect ffmpeg progress metrics" default:"true" toml:"ffmpeg.progress" env:"FFMPEG_PROGRESS"`

	// Mirror settings
	MirrorInterval string `help:"Remote grid poll interval" default:"100ms" toml:"mirror.interval" env:"MIRROR_INTERVAL"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingDecoder  string `help:"Decoder logging level" default:"info" toml:"logging.decoder" env:"LOGGING_DECODER"`
	LoggingSession  string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingViewport string `help:"Viewport logging level" default:"info" toml:"logging.viewport" env:"LOGGING_VIEWPORT"`
	LoggingMirror   string `help:"Mirror logging level" default:"info" toml:"logging.mirror" env:"LOGGING_MIRROR"`
	LoggingFfmpeg   string `help:"ffmpeg stderr logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// loggingConfig merges the [logging] table, which may name any module, with
// the resolved options.
func loggingConfig(opts *Options) logging.Config {
	cfg := config.LoadLoggingConfig(opts.Config)
	cfg.Level = opts.LoggingLevel
	cfg.Format = opts.LoggingFormat
	for module, level := range map[string]string{
		"decoder":  opts.LoggingDecoder,
		"session":  opts.LoggingSession,
		"viewport": opts.LoggingViewport,
		"mirror":   opts.LoggingMirror,
		"ffmpeg":   opts.LoggingFfmpeg,
		"api":      opts.LoggingAPI,
	} {
		cfg.Modules[module] = level
	}
	return cfg
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Error("Failed to load config", "path", opts.Config, "error", loadErr)
			os.Exit(1)
		}

		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")

		ffmpeg.FFmpegBinary = opts.FfmpegPath
		ffmpeg.FFprobeBinary = opts.FfprobePath

		// The viewer is only built when the root command runs; this callback
		// also runs for the subcommands.
		var (
			mu  sync.Mutex
			app *viewer
		)

		hooks.OnStart(func() {
			args := cli.Root().Flags().Args()
			v, err := newViewer(opts, args)
			if err != nil {
				logger.Error("Failed to start viewer", "error", err)
				os.Exit(1)
			}
			mu.Lock()
			app = v
			mu.Unlock()

			if startErr := v.run(args[0]); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			mu.Lock()
			v := app
			mu.Unlock()
			if v != nil {
				v.stop()
			}
		})
	})

	root := cli.Root()
	root.Use = "ffview [flags] <stream_url> [<mirror_addr>]"
	root.Short = "Live video viewer with zoom, false colour and a measurement grid"
	root.Long = strings.Join([]string{
		"Decodes <stream_url> and serves the view at /stream.mjpg with a control API under /api.",
		"When <mirror_addr> is given, the grid settings are kept in sync with the viewer at that address.",
	}, "\n")
	root.Args = cobra.RangeArgs(1, 2)

	root.AddCommand(cmd.CreateProbeCmd())
	root.AddCommand(cmd.CreatePaletteCmd())
	root.AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
