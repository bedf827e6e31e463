package events

// Event type constants for kelindar/event.
const (
	TypeViewChanged uint32 = iota + 1
	TypeGeometryChanged
	TypeSessionStateChanged
	TypeFrameStats
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ViewChangedEvent reports a changed viewport parameter. Booleans are sent as
// 0 or 1 and colours as 0xRRGGBB.
type ViewChangedEvent struct {
	Field     string `json:"field" example:"gx" doc:"Parameter name: x, y, zoom, gx, gy, gs, grid, gcol, fcol"`
	Value     int64  `json:"value" example:"320" doc:"New value"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Change timestamp"`
}

// Type returns the event type identifier for ViewChangedEvent.
func (e ViewChangedEvent) Type() uint32 { return TypeViewChanged }

// GeometryChangedEvent reports new derived viewport geometry.
type GeometryChangedEvent struct {
	ImageWidth    int     `json:"image_width" example:"1024" doc:"Display frame width"`
	ImageHeight   int     `json:"image_height" example:"768" doc:"Display frame height"`
	VisibleWidth  int     `json:"visible_width" example:"512" doc:"Visible region width in image pixels"`
	VisibleHeight int     `json:"visible_height" example:"384" doc:"Visible region height in image pixels"`
	MaxX          int     `json:"max_x" example:"512" doc:"Largest horizontal pan"`
	MaxY          int     `json:"max_y" example:"384" doc:"Largest vertical pan"`
	MaxGridX      int     `json:"max_gx" example:"1023" doc:"Largest grid x"`
	MaxGridY      int     `json:"max_gy" example:"767" doc:"Largest grid y"`
	Scale         float64 `json:"scale" example:"1.25" doc:"Image to screen scale factor"`
	Timestamp     string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Change timestamp"`
}

// Type returns the event type identifier for GeometryChangedEvent.
func (e GeometryChangedEvent) Type() uint32 { return TypeGeometryChanged }

// SessionStateChangedEvent reports a decoder state transition.
type SessionStateChangedEvent struct {
	Address   string `json:"address" example:"rtsp://camera/stream" doc:"Stream address"`
	State     string `json:"state" example:"streaming" doc:"idle, opening, streaming, stopping, stopped or failed"`
	Error     string `json:"error,omitempty" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// FrameStatsEvent carries the display frame rate and decoder counters.
type FrameStatsEvent struct {
	FPS       float64 `json:"fps" example:"24.9" doc:"Rolling display frame rate"`
	Limited   bool    `json:"limited" doc:"Frames are being skipped to limit the rate"`
	Decoded   uint64  `json:"decoded" example:"1200" doc:"Frames decoded"`
	Dropped   uint64  `json:"dropped" example:"3" doc:"Frames dropped for lack of buffers or consumer"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Sample timestamp"`
}

// Type returns the event type identifier for FrameStatsEvent.
func (e FrameStatsEvent) Type() uint32 { return TypeFrameStats }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"decoder" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
