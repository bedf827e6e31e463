package process

import "time"

// State represents the current state of a subprocess.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not started
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // SIGINT sent
	StateExited   State = "exited"   // Exited on its own or after stop
	StateError    State = "error"    // Failed to start
)

// Info contains information about a subprocess.
type Info struct {
	ID        string
	State     State
	PID       int
	StartedAt time.Time
	ExitCode  int
	LastError error
}
