// Package collectors gathers metrics reported by external processes.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/metrics"
)

// ProgressCollector reads ffmpeg -progress output from a unix socket and
// publishes it as metrics.
type ProgressCollector struct {
	logger     *slog.Logger
	socketPath string
	listener   net.Listener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewProgressCollector creates a collector listening on socketPath.
func NewProgressCollector(socketPath string) *ProgressCollector {
	return &ProgressCollector{
		logger:     logging.GetLogger("ffmpeg").With("component", "progress"),
		socketPath: socketPath,
	}
}

// SocketPath returns the socket ffmpeg should write to.
func (c *ProgressCollector) SocketPath() string {
	return c.socketPath
}

// Start listens on the socket. It returns once ffmpeg can connect.
func (c *ProgressCollector) Start(ctx context.Context) error {
	if err := os.Remove(c.socketPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove stale socket", "socket", c.socketPath, "error", err)
	}
	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return err
	}
	c.listener = listener

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.accept(ctx)
	return nil
}

// Stop closes the socket and zeroes the ffmpeg metrics.
func (c *ProgressCollector) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.listener != nil {
			err = c.listener.Close()
		}
		c.wg.Wait()
		if rmErr := os.Remove(c.socketPath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
		metrics.ResetFFmpegProgress()
	})
	return err
}

func (c *ProgressCollector) accept(ctx context.Context) {
	defer c.wg.Done()
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				c.logger.Warn("Error accepting progress connection", "error", err)
			}
			return
		}
		c.wg.Add(1)
		go c.read(ctx, conn)
	}
}

func (c *ProgressCollector) read(ctx context.Context, conn net.Conn) {
	defer c.wg.Done()
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	block := make(map[string]string)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		block[key] = value

		if key == "progress" {
			metrics.SetFFmpegProgress(parseProgress(block))
			if value == "end" {
				c.logger.Debug("ffmpeg reported end of progress")
			}
			clear(block)
		}
	}
}

// parseProgress converts one -progress block. Missing or unparsable keys
// stay zero.
func parseProgress(block map[string]string) metrics.FFmpegProgress {
	var p metrics.FFmpegProgress
	p.Frame, _ = strconv.ParseInt(block["frame"], 10, 64)
	p.FPS, _ = strconv.ParseFloat(block["fps"], 64)
	p.DroppedFrames, _ = strconv.ParseFloat(block["drop_frames"], 64)
	p.DuplicateFrames, _ = strconv.ParseFloat(block["dup_frames"], 64)
	p.Speed, _ = strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(block["speed"], "x")), 64)
	return p
}
