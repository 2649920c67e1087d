// Package device defines the boundary between the acquisition loop and the
// depth camera driver, plus the software devices used when no camera is
// attached.
package device

import "errors"

var (
	// ErrNoSample is returned by AcquireSample when a cycle produced nothing
	// usable. The loop skips the frame.
	ErrNoSample = errors.New("no sample available")

	// ErrNoDevice is returned by operations that need hardware.
	ErrNoDevice = errors.New("no camera device")

	// ErrClosed is returned by AcquireSample after Close.
	ErrClosed = errors.New("device closed")
)

// Device is an opaque handle on a depth camera session. Only the
// acquisition loop calls AcquireSample/ReleaseSample; configuration methods
// are called while the loop is stopped.
type Device interface {
	// Init prepares the session for streaming with the enabled streams.
	Init() error

	// AcquireSample blocks until the next sample is ready. The returned
	// images stay valid until ReleaseSample.
	AcquireSample() (*Sample, error)

	// ReleaseSample returns the current sample's buffers to the driver.
	ReleaseSample()

	// EnableStream requests a stream at the given resolution.
	EnableStream(kind StreamKind, res StreamResolution) error

	// FieldOfView reports the stream's field of view.
	FieldOfView(kind StreamKind) FieldOfView

	// Info identifies the hardware.
	Info() Info

	// IsStreamProfileSetValid reports whether both streams can run together.
	IsStreamProfileSetValid(profiles ProfileSet) bool

	// Enable3DScan turns on the scan subsystem and returns its handle.
	Enable3DScan() (Scanner, error)

	// Close ends the streaming session. Enabled streams are forgotten and
	// must be enabled again before the next Init.
	Close() error
}

// Scanner is the incremental 3D reconstruction subsystem of a device.
type Scanner interface {
	SetConfiguration(cfg ScanConfiguration) error
	Configuration() ScanConfiguration

	// AcquirePreviewImage returns the current rendered preview, or nil.
	AcquirePreviewImage() *Image

	SetArea(area Area) error

	// Reconstruct writes the scanned mesh to filename. It may take seconds.
	Reconstruct(format FileFormat, filename string) error
}
