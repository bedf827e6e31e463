package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/smazurov/ffview/internal/api"
	"github.com/smazurov/ffview/internal/config"
	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/ffmpeg"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/metrics/exporters"
	"github.com/smazurov/ffview/internal/mirror"
	"github.com/smazurov/ffview/internal/render"
	"github.com/smazurov/ffview/internal/session"
	"github.com/smazurov/ffview/internal/source"
	"github.com/smazurov/ffview/internal/transform"
	"github.com/smazurov/ffview/internal/viewport"
)

// Grid shown when no mirror provides one.
const (
	defaultGridX       = 100
	defaultGridY       = 100
	defaultGridSpacing = 10
)

// viewer wires the session, view, mirror, config watcher and API together.
type viewer struct {
	opts   *Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	bus     *events.Bus
	view    *viewport.Controller
	surface *render.Surface
	session *session.Session
	mirror  *mirror.Mirror
	watcher *config.Watcher[config.ViewPreset]
	server  *api.Server
}

func newViewer(opts *Options, args []string) (*viewer, error) {
	logger := logging.GetLogger("main")

	sessionCfg, err := sessionConfig(opts)
	if err != nil {
		return nil, err
	}
	sourceCfg, err := sourceConfig(opts)
	if err != nil {
		return nil, err
	}
	scaler, ok := render.ParseScaler(opts.PreviewScaler)
	if !ok {
		return nil, fmt.Errorf("unknown preview scaler %q", opts.PreviewScaler)
	}

	bus := events.New()
	api.PublishLogs(bus)

	backend := transform.BackendOverlay
	if opts.Fallback {
		backend = transform.BackendFallback
	}
	view := viewport.New(viewport.WithBackend(backend), viewport.WithBus(bus))
	if opts.WidgetWidth > 0 && opts.WidgetHeight > 0 {
		view.SetWidgetSize(opts.WidgetWidth, opts.WidgetHeight)
	}

	surface := render.New(render.Options{Quality: opts.PreviewQuality, Scaler: scaler})

	v := &viewer{
		opts:    opts,
		logger:  logger,
		bus:     bus,
		view:    view,
		surface: surface,
		session: session.New(&session.Options{
			Config:    sessionCfg,
			Sources:   source.NewRouter(sourceCfg),
			View:      view,
			Presenter: surface,
			EventBus:  bus,
		}),
	}

	if len(args) > 1 && args[1] != "" {
		interval, err := parseDuration("mirror interval", opts.MirrorInterval)
		if err != nil {
			return nil, err
		}
		remote := mirror.NewHTTPRemote(args[1])
		v.mirror = mirror.New(remote, view, mirror.WithBus(bus), mirror.WithInterval(interval))
		logger.Info("Mirroring grid", "remote", remote.URL(), "interval", interval)
	} else {
		view.Batch(func(b *viewport.Batch) {
			b.SetGridCenter(defaultGridX, defaultGridY)
			b.SetGridSpacing(defaultGridSpacing)
		})
	}

	v.applyPreset()

	v.server = api.NewServer(&api.Options{
		AuthUsername:      opts.AuthUsername,
		AuthPassword:      opts.AuthPassword,
		Session:           v.session,
		View:              view,
		Surface:           surface,
		EventBus:          bus,
		PrometheusHandler: exporters.HTTPHandler(),
	})
	return v, nil
}

// run starts everything and serves the API until stop.
func (v *viewer) run(address string) error {
	v.ctx, v.cancel = context.WithCancel(context.Background())

	if err := v.session.Start(v.ctx, address); err != nil {
		v.logger.Error("Failed to open stream", "address", address, "error", err)
	}
	if v.mirror != nil {
		v.mirror.Start()
	}
	v.watchPresets()

	v.logger.Info("Starting HTTP server", "port", v.opts.Port)
	return v.server.Start(v.opts.Port)
}

// stop shuts down in reverse order: no new requests, no remote traffic,
// then the decoder.
func (v *viewer) stop() {
	v.logger.Info("Shutting down")
	if err := v.server.Stop(); err != nil {
		v.logger.Error("Error stopping HTTP server", "error", err)
	}
	if v.watcher != nil {
		if err := v.watcher.Stop(); err != nil {
			v.logger.Warn("Error stopping config watcher", "error", err)
		}
	}
	if v.mirror != nil {
		v.mirror.Stop()
	}
	v.session.Stop()
	if v.cancel != nil {
		v.cancel()
	}
}

// applyPreset applies the [view] table of the config file, if any.
func (v *viewer) applyPreset() {
	preset, err := config.LoadViewPreset(v.opts.Config)
	switch {
	case err == nil:
		v.view.Batch(preset.Apply)
		v.logger.Info("Applied view preset", "path", v.opts.Config)
	case errors.Is(err, os.ErrNotExist), errors.Is(err, config.ErrNoViewSection):
	default:
		v.logger.Warn("Ignoring view preset", "path", v.opts.Config, "error", err)
	}
}

// watchPresets re-applies the [view] table whenever the config file changes.
func (v *viewer) watchPresets() {
	if _, err := os.Stat(v.opts.Config); err != nil {
		return
	}
	v.watcher = config.NewConfigWatcher(v.opts.Config, config.LoadViewPreset, v.logger,
		config.WithErrorHandler[config.ViewPreset](func(err error) {
			if errors.Is(err, config.ErrNoViewSection) {
				return
			}
			v.logger.Warn("View preset not applied", "error", err)
		}))
	v.watcher.OnReload(func(preset config.ViewPreset) {
		v.view.Batch(preset.Apply)
		v.logger.Info("View preset reloaded")
	})
	if err := v.watcher.Start(); err != nil {
		v.logger.Warn("Failed to watch config file", "path", v.opts.Config, "error", err)
		v.watcher = nil
	}
}

func sessionConfig(opts *Options) (session.Config, error) {
	cfg := session.DefaultConfig()
	cfg.RawBuffers = opts.RawBuffers
	cfg.DisplayBuffers = opts.DisplayBuffers
	cfg.MaxWidth, cfg.MaxHeight = opts.MaxWidth, opts.MaxHeight
	cfg.OverlayMaxWidth, cfg.OverlayMaxHeight = opts.OverlayMaxWidth, opts.OverlayMaxHeight

	var err error
	if cfg.FallbackInterval, err = parseDuration("fallback interval", opts.FallbackLimit); err != nil {
		return cfg, err
	}
	if cfg.Grace, err = parseDuration("stop grace", opts.StopGrace); err != nil {
		return cfg, err
	}
	if cfg.KillGrace, err = parseDuration("kill grace", opts.KillGrace); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func sourceConfig(opts *Options) (source.Config, error) {
	cfg := source.Config{
		FFmpegOptions:  ffmpeg.GetDefaultOptions(),
		FFmpegLogLevel: opts.FfmpegLogLevel,
	}
	if opts.FfmpegOptions != "" {
		parsed, err := ffmpeg.ParseOptions(strings.Split(opts.FfmpegOptions, ","))
		if err != nil {
			return cfg, err
		}
		if err := ffmpeg.ValidateOptions(parsed); err != nil {
			return cfg, err
		}
		cfg.FFmpegOptions = parsed
	}
	if opts.FfmpegProgress {
		cfg.ProgressDir = os.TempDir()
	}
	return cfg, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, value)
	}
	return d, nil
}
