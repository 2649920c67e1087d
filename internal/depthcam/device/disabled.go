package device

import (
	"sync"
	"time"

	"github.com/banshee-data/depthscan/internal/timeutil"
)

// disabledFrameInterval paces the acquisition loop when no hardware is
// present so Stop still completes within one nominal frame.
const disabledFrameInterval = time.Second / 30

// Disabled is the Device used when no camera is connected. Queries return
// zero values, stream configuration is accepted and ignored, and every
// acquisition cycle yields ErrNoSample after one nominal frame period.
type Disabled struct {
	Clock timeutil.Clock
}

// NewDisabled returns a Disabled device paced by the real clock.
func NewDisabled() *Disabled {
	return &Disabled{Clock: timeutil.RealClock{}}
}

func (d *Disabled) clock() timeutil.Clock {
	if d.Clock == nil {
		return timeutil.RealClock{}
	}
	return d.Clock
}

func (d *Disabled) Init() error { return nil }

func (d *Disabled) AcquireSample() (*Sample, error) {
	d.clock().Sleep(disabledFrameInterval)
	return nil, ErrNoSample
}

func (d *Disabled) ReleaseSample()                                  {}
func (d *Disabled) EnableStream(StreamKind, StreamResolution) error { return nil }
func (d *Disabled) FieldOfView(StreamKind) FieldOfView              { return FieldOfView{} }
func (d *Disabled) Info() Info                                      { return Info{} }
func (d *Disabled) IsStreamProfileSetValid(ProfileSet) bool         { return false }
func (d *Disabled) Close() error                                    { return nil }

// Enable3DScan returns a scanner that never produces a preview and fails
// every reconstruction with ErrNoDevice.
func (d *Disabled) Enable3DScan() (Scanner, error) {
	return &disabledScanner{}, nil
}

type disabledScanner struct {
	mu  sync.Mutex
	cfg ScanConfiguration
}

func (s *disabledScanner) SetConfiguration(cfg ScanConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

func (s *disabledScanner) Configuration() ScanConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *disabledScanner) AcquirePreviewImage() *Image { return nil }
func (s *disabledScanner) SetArea(Area) error          { return nil }

func (s *disabledScanner) Reconstruct(FileFormat, string) error {
	return ErrNoDevice
}
