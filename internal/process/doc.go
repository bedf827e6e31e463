// Package process runs the ffmpeg and ffprobe subprocesses that feed the
// decoder.
//
// Process wraps os/exec for a single subprocess:
//   - Raw stdout handed to the caller as a reader that sees io.EOF on exit
//   - stderr streamed line by line through a pluggable LogParser
//   - Graceful shutdown with SIGINT and a configurable timeout
//   - Force kill with SIGKILL if graceful shutdown times out
//
// Example:
//
//	p := process.New("decode", args, logger,
//	    process.WithLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel))
//	stdout, err := p.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Stop()
package process
