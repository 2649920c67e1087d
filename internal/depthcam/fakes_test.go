package depthcam

import (
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/depthscan/internal/depthcam/device"
)

// fakeDevice produces small frames on demand. AcquireSample blocks on gate
// when it is non-nil.
type fakeDevice struct {
	mu       sync.Mutex
	info     device.Info
	streams  map[device.StreamKind]device.StreamResolution
	enables  []device.StreamKind
	closes   int
	inits    int
	initErr  error
	errs     []error // returned by AcquireSample in order before any sample
	gate     chan struct{}
	interval time.Duration
	scanner  *fakeScanner
	released int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		info:     device.Info{Name: "fake", Model: device.ModelR200Enhanced, Firmware: device.Firmware{2, 0, 71, 28}},
		streams:  make(map[device.StreamKind]device.StreamResolution),
		interval: time.Millisecond,
	}
}

func (d *fakeDevice) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	return d.initErr
}

func (d *fakeDevice) AcquireSample() (*device.Sample, error) {
	d.mu.Lock()
	gate := d.gate
	var err error
	if len(d.errs) > 0 {
		err, d.errs = d.errs[0], d.errs[1:]
	}
	color, hasColor := d.streams[device.StreamColor]
	depth, hasDepth := d.streams[device.StreamDepth]
	interval := d.interval
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	time.Sleep(interval)
	if err != nil {
		return nil, err
	}

	s := &device.Sample{}
	if hasColor {
		pix := make([]byte, color.Width*color.Height*device.ColorBytesPerPixel)
		for i := range pix {
			pix[i] = 0xC0
		}
		s.Color = &device.Image{Width: color.Width, Height: color.Height, Pix: pix}
	}
	if hasDepth {
		dep := make([]uint16, depth.Width*depth.Height)
		for i := range dep {
			dep[i] = 1234
		}
		s.Depth = &device.Image{Width: depth.Width, Height: depth.Height, Depth: dep}
	}
	return s, nil
}

func (d *fakeDevice) ReleaseSample() {
	d.mu.Lock()
	d.released++
	d.mu.Unlock()
}

func (d *fakeDevice) EnableStream(kind device.StreamKind, res device.StreamResolution) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res.Width > 1000 {
		return errors.New("unsupported")
	}
	d.streams[kind] = res
	d.enables = append(d.enables, kind)
	return nil
}

func (d *fakeDevice) FieldOfView(kind device.StreamKind) device.FieldOfView {
	if kind == device.StreamDepth {
		return device.FieldOfView{Horizontal: 70, Vertical: 46}
	}
	return device.FieldOfView{Horizontal: 77, Vertical: 43}
}

func (d *fakeDevice) Info() device.Info { return d.info }

func (d *fakeDevice) IsStreamProfileSetValid(p device.ProfileSet) bool {
	return p.Color.Width >= p.Depth.Width
}

func (d *fakeDevice) Enable3DScan() (device.Scanner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scanner == nil {
		d.scanner = &fakeScanner{}
	}
	return d.scanner, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.streams = make(map[device.StreamKind]device.StreamResolution)
	return nil
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *fakeDevice) stream(kind device.StreamKind) (device.StreamResolution, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.streams[kind]
	return r, ok
}

type fakeScanner struct {
	mu      sync.Mutex
	cfg     device.ScanConfiguration
	saved   []string
	preview *device.Image
}

func (s *fakeScanner) SetConfiguration(cfg device.ScanConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

func (s *fakeScanner) Configuration() device.ScanConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *fakeScanner) AcquirePreviewImage() *device.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

func (s *fakeScanner) SetArea(device.Area) error { return nil }

func (s *fakeScanner) Reconstruct(format device.FileFormat, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, filename)
	return nil
}

func (s *fakeScanner) savedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

type temporaryErr struct{}

func (temporaryErr) Error() string   { return "usb hiccup" }
func (temporaryErr) Temporary() bool { return true }
