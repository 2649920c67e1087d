package scan

import (
	"time"

	"github.com/banshee-data/depthscan/internal/depthcam/frames"
)

// EventKind names a lifecycle or scan transition.
type EventKind string

const (
	EventCameraStarted  EventKind = "camera_started"
	EventCameraStopped  EventKind = "camera_stopped"
	EventCameraFailed   EventKind = "camera_failed"
	EventScanStarted    EventKind = "scan_started"
	EventScanStopped    EventKind = "scan_stopped"
	EventScanSaved      EventKind = "scan_saved"
	EventScanFailed     EventKind = "scan_failed"
	EventPreviewResized EventKind = "preview_resized"
)

// Event is emitted from the acquisition goroutine after a transition has been
// applied. Consumers must not block the emitter.
type Event struct {
	Kind EventKind
	Time time.Time

	// RunID identifies the camera run (Start to Stop) the event belongs to.
	RunID string
	// SessionID identifies the scan the event belongs to, if any.
	SessionID string
	// Frame is the sequence number of the frame being produced.
	Frame uint64

	Format   string
	Filename string
	Preview  frames.Size
	Frames   uint64
	Err      string
}
