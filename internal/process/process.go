package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrEmptyCommand is returned when a process has no arguments.
var ErrEmptyCommand = errors.New("empty command")

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("process already started")

// OutputHandler receives stderr lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, ffprobe).
type LogParser func(line string) (level, msg string)

// Option configures a Process.
type Option func(*Process)

// WithLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
func WithLogParser(logger *slog.Logger, parser LogParser) Option {
	return func(p *Process) {
		p.processLogger = logger
		p.logParser = parser
	}
}

// WithOutputHandler sets a handler receiving every stderr line.
func WithOutputHandler(h OutputHandler) Option {
	return func(p *Process) { p.outputHandler = h }
}

// WithTimeouts sets the graceful shutdown timeout and the wait after SIGKILL.
func WithTimeouts(graceful, kill time.Duration) Option {
	return func(p *Process) {
		p.gracefulTimeout = graceful
		p.killTimeout = kill
	}
}

// Process manages the lifecycle of one subprocess.
type Process struct {
	id              string
	args            []string
	logger          *slog.Logger
	processLogger   *slog.Logger // logger for process output (nil = use logger)
	logParser       LogParser    // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu        sync.Mutex
	cmd       *exec.Cmd
	state     State
	startedAt time.Time
	exitCode  int
	lastErr   error
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a process for args. args[0] is the executable.
func New(id string, args []string, logger *slog.Logger, opts ...Option) *Process {
	p := &Process{
		id:              id,
		args:            args,
		logger:          logger.With("process", id),
		state:           StateIdle,
		done:            make(chan struct{}),
		gracefulTimeout: 2 * time.Second,
		killTimeout:     time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Args returns the command line.
func (p *Process) Args() []string {
	return p.args
}

// String returns the command line joined with spaces.
func (p *Process) String() string {
	return strings.Join(p.args, " ")
}

// Start launches the subprocess and returns its stdout. The reader returns
// io.EOF once the process has exited and all output was read. Cancelling ctx
// stops the process.
func (p *Process) Start(ctx context.Context) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return nil, ErrAlreadyStarted
	}
	if len(p.args) == 0 {
		p.fail(ErrEmptyCommand)
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// An explicit pipe keeps stdout readable until EOF after Wait returns.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		p.fail(err)
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		p.fail(err)
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		p.logger.Error("Failed to start process", "error", err, "command", p.String())
		p.fail(err)
		return nil, fmt.Errorf("start %s: %w", p.args[0], err)
	}
	stdoutW.Close()

	p.cmd = cmd
	p.state = StateRunning
	p.startedAt = time.Now()
	p.logger.Debug("Process started", "pid", cmd.Process.Pid, "command", p.String())

	outputDone := make(chan struct{})
	go func() {
		p.streamOutput(stderr, "stderr")
		close(outputDone)
	}()
	go func() {
		<-outputDone
		p.exited(cmd.Wait())
	}()
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.done:
		}
	}()

	return stdoutR, nil
}

// Output runs the subprocess to completion and returns its stdout.
func (p *Process) Output(ctx context.Context) ([]byte, error) {
	stdout, err := p.Start(ctx)
	if err != nil {
		return nil, err
	}
	defer stdout.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stdout); err != nil {
		return nil, fmt.Errorf("read %s output: %w", p.args[0], err)
	}
	if code := p.Wait(); code != 0 {
		return buf.Bytes(), fmt.Errorf("%s exited with code %d", p.args[0], code)
	}
	return buf.Bytes(), nil
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Stop sends SIGINT and waits for the process to exit, force-killing it after
// the graceful timeout. It returns the exit code, 137 when killed. Stop is
// safe to call more than once and before Start.
func (p *Process) Stop() int {
	p.mu.Lock()
	if p.cmd == nil {
		p.mu.Unlock()
		return 0
	}
	p.mu.Unlock()

	p.stopOnce.Do(p.sendStopSignal)
	return p.waitForExit(p.gracefulTimeout)
}

// Info returns the current process information.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := Info{
		ID:        p.id,
		State:     p.state,
		StartedAt: p.startedAt,
		ExitCode:  p.exitCode,
		LastError: p.lastErr,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

func (p *Process) fail(err error) {
	p.state = StateError
	p.lastErr = err
	p.exitCode = 1
	close(p.done)
}

func (p *Process) exited(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exitCode != 137 {
		p.exitCode = exitCodeFromError(err)
	}
	if err != nil && p.state != StateStopping {
		p.lastErr = err
	}
	p.state = StateExited
	p.logger.Debug("Process exited", "exit_code", p.exitCode)
	close(p.done)
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		// Terminated by a signal.
		return 128 + int(exitErr.Sys().(syscall.WaitStatus).Signal())
	}
	return 1
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}
	p.state = StateStopping
	p.logger.Debug("Sending SIGINT to process", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(timeout time.Duration) int {
	select {
	case <-p.done:
		return p.Wait()
	case <-time.After(timeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", timeout)
	p.mu.Lock()
	p.exitCode = 137
	if err := p.cmd.Process.Kill(); err != nil {
		// "os: process already finished" is OK - process exited between timeout and kill
		if !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "error", err)
		}
	}
	p.mu.Unlock()

	// Wait for process to exit with a secondary timeout to prevent hanging
	select {
	case <-p.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal")
	}
	return 137
}

// streamOutput streams output from the subprocess.
// Uses the configured processLogger (or falls back to default logger).
// Uses the configured LogParser to extract log levels from process output.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "panic", "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}
