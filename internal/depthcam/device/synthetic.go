package device

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/depthscan/internal/fsutil"
	"github.com/banshee-data/depthscan/internal/mesh"
	"github.com/banshee-data/depthscan/internal/timeutil"
)

// SyntheticConfig configures a Synthetic device.
type SyntheticConfig struct {
	Info     Info
	ColorFOV FieldOfView
	DepthFOV FieldOfView

	// Clock paces sample production. Defaults to the real clock.
	Clock timeutil.Clock

	// FS receives reconstructed meshes. Defaults to the OS filesystem.
	FS fsutil.FileSystem

	// InitErr, when set, is returned by Init.
	InitErr error

	// PreviewGrowAfter is the number of scanning frames after which the
	// preview image switches to its larger size. Defaults to 30.
	PreviewGrowAfter int
}

// DefaultSyntheticConfig describes a simulated SR300.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Info: Info{
			Name:     "Synthetic SR300",
			Serial:   "SYN-0001",
			Model:    ModelSR300,
			Firmware: Firmware{3, 10, 10, 0},
		},
		ColorFOV: FieldOfView{Horizontal: 68.0, Vertical: 41.5},
		DepthFOV: FieldOfView{Horizontal: 71.5, Vertical: 55.0},
	}
}

// Synthetic is a software camera. It produces a moving color gradient and a
// depth ramp at the enabled streams' rate, and its scanner writes a box mesh
// sized to the configured scan area.
type Synthetic struct {
	cfg   SyntheticConfig
	clock timeutil.Clock

	mu      sync.Mutex
	streams map[StreamKind]StreamResolution
	running bool
	frame   uint64
	color   *Image
	depth   *Image
	scanner *syntheticScanner
}

// NewSynthetic returns a Synthetic device.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.PreviewGrowAfter <= 0 {
		cfg.PreviewGrowAfter = 30
	}
	return &Synthetic{
		cfg:     cfg,
		clock:   cfg.Clock,
		streams: make(map[StreamKind]StreamResolution),
	}
}

func (s *Synthetic) Init() error {
	if s.cfg.InitErr != nil {
		return s.cfg.InitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

func (s *Synthetic) interval() StreamResolution {
	best := StreamResolution{FPS: 30}
	for _, res := range s.streams {
		if res.FPS > best.FPS {
			best = res
		}
	}
	return best
}

func (s *Synthetic) AcquireSample() (*Sample, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	wait := s.interval().FrameInterval()
	s.mu.Unlock()

	s.clock.Sleep(wait)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrClosed
	}
	s.frame++
	sample := &Sample{}
	if res, ok := s.streams[StreamColor]; ok {
		s.color = ensureColorImage(s.color, res.Width, res.Height)
		fillGradient(s.color, s.frame)
		sample.Color = s.color
	}
	if res, ok := s.streams[StreamDepth]; ok {
		s.depth = ensureDepthImage(s.depth, res.Width, res.Height)
		fillDepthRamp(s.depth, s.frame)
		sample.Depth = s.depth
	}
	if s.scanner != nil {
		s.scanner.observe()
	}
	return sample, nil
}

func (s *Synthetic) ReleaseSample() {}

func (s *Synthetic) EnableStream(kind StreamKind, res StreamResolution) error {
	if res.Width <= 0 || res.Height <= 0 || res.FPS <= 0 {
		return fmt.Errorf("unsupported %s resolution %s", kind, res)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("enable %s stream: session is streaming", kind)
	}
	s.streams[kind] = res
	return nil
}

func (s *Synthetic) FieldOfView(kind StreamKind) FieldOfView {
	if kind == StreamDepth {
		return s.cfg.DepthFOV
	}
	return s.cfg.ColorFOV
}

func (s *Synthetic) Info() Info { return s.cfg.Info }

// IsStreamProfileSetValid accepts any pair of non-empty streams running at
// the same frame rate.
func (s *Synthetic) IsStreamProfileSetValid(p ProfileSet) bool {
	if p.Color.Width <= 0 || p.Color.Height <= 0 || p.Depth.Width <= 0 || p.Depth.Height <= 0 {
		return false
	}
	return p.Color.FPS == p.Depth.FPS
}

func (s *Synthetic) Enable3DScan() (Scanner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanner == nil {
		s.scanner = &syntheticScanner{
			fs:         s.cfg.FS,
			growAfter:  s.cfg.PreviewGrowAfter,
			small:      [2]int{160, 120},
			large:      [2]int{320, 240},
			area:       Area{Shape: Box{Width: 0.5, Height: 0.5, Depth: 0.5}, Resolution: 256},
			previewBuf: &Image{},
		}
	}
	return s.scanner, nil
}

func (s *Synthetic) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.streams = make(map[StreamKind]StreamResolution)
	return nil
}

// Frames returns the number of samples produced so far.
func (s *Synthetic) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func ensureColorImage(img *Image, w, h int) *Image {
	if img == nil || img.Width != w || img.Height != h {
		return &Image{Width: w, Height: h, Pix: make([]byte, w*h*ColorBytesPerPixel)}
	}
	return img
}

func ensureDepthImage(img *Image, w, h int) *Image {
	if img == nil || img.Width != w || img.Height != h {
		return &Image{Width: w, Height: h, Depth: make([]uint16, w*h)}
	}
	return img
}

// fillGradient writes a BGRA gradient that scrolls one column per frame.
func fillGradient(img *Image, frame uint64) {
	if img.Width == 0 {
		return
	}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := (y*img.Width + x) * ColorBytesPerPixel
			img.Pix[i+0] = byte((x + int(frame)) * 255 / img.Width)
			img.Pix[i+1] = byte(y * 255 / img.Height)
			img.Pix[i+2] = byte(frame)
			img.Pix[i+3] = 255
		}
	}
}

// fillDepthRamp writes distances in millimetres increasing left to right.
func fillDepthRamp(img *Image, frame uint64) {
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.Depth[y*img.Width+x] = uint16(300 + x*4 + int(frame%100))
		}
	}
}

// syntheticScanner is the Scanner of a Synthetic device.
type syntheticScanner struct {
	fs        fsutil.FileSystem
	growAfter int
	small     [2]int
	large     [2]int

	mu         sync.Mutex
	cfg        ScanConfiguration
	area       Area
	scanned    int
	previewBuf *Image
}

var errUnsupportedFormat = errors.New("synthetic scanner writes obj only")

func (s *syntheticScanner) observe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.StartScan {
		s.scanned++
	}
}

func (s *syntheticScanner) SetConfiguration(cfg ScanConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.StartScan && cfg.StartScan {
		s.scanned = 0
	}
	s.cfg = cfg
	return nil
}

func (s *syntheticScanner) Configuration() ScanConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// AcquirePreviewImage returns the small preview until enough frames have
// been scanned, then the large one.
func (s *syntheticScanner) AcquirePreviewImage() *Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.small
	if s.scanned >= s.growAfter {
		size = s.large
	}
	img := s.previewBuf
	if img.Width != size[0] || img.Height != size[1] {
		img = &Image{Width: size[0], Height: size[1], Pix: make([]byte, size[0]*size[1]*ColorBytesPerPixel)}
		s.previewBuf = img
	}
	shade := byte(64)
	if s.cfg.StartScan {
		shade = byte(128 + s.scanned%128)
	}
	for i := 0; i < len(img.Pix); i += ColorBytesPerPixel {
		img.Pix[i+0] = shade
		img.Pix[i+1] = shade
		img.Pix[i+2] = shade
		img.Pix[i+3] = 255
	}
	return img
}

func (s *syntheticScanner) SetArea(area Area) error {
	if area.Shape.Width <= 0 || area.Shape.Height <= 0 || area.Shape.Depth <= 0 || area.Resolution <= 0 {
		return fmt.Errorf("invalid scan area %+v", area)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.area = area
	return nil
}

// Reconstruct writes a box the size of the scan area.
func (s *syntheticScanner) Reconstruct(format FileFormat, filename string) error {
	if format != FormatOBJ {
		return fmt.Errorf("reconstruct %s: %w", format, errUnsupportedFormat)
	}
	s.mu.Lock()
	area := s.area
	s.mu.Unlock()

	if dir := filepath.Dir(filename); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create scan directory: %w", err)
		}
	}
	w, err := s.fs.Create(filename)
	if err != nil {
		return fmt.Errorf("create scan file: %w", err)
	}
	if err := mesh.Write(w, boxMesh(area.Shape)); err != nil {
		w.Close()
		return fmt.Errorf("write scan file: %w", err)
	}
	return w.Close()
}

func boxMesh(b Box) *mesh.Mesh {
	hx, hy, hz := float64(b.Width)/2, float64(b.Height)/2, float64(b.Depth)/2
	m := &mesh.Mesh{}
	for i := 0; i < 8; i++ {
		v := r3.Vec{X: -hx, Y: -hy, Z: -hz}
		if i&1 != 0 {
			v.X = hx
		}
		if i&2 != 0 {
			v.Y = hy
		}
		if i&4 != 0 {
			v.Z = hz
		}
		m.Vertices = append(m.Vertices, v)
		m.Colors = append(m.Colors, color.RGBA{R: byte(i&1) * 255, G: byte(i&2>>1) * 255, B: byte(i&4>>2) * 255, A: 255})
	}
	faces := [][4]int32{
		{0, 1, 3, 2}, {4, 6, 7, 5}, // -z, +z
		{0, 4, 5, 1}, {2, 3, 7, 6}, // -y, +y
		{0, 2, 6, 4}, {1, 5, 7, 3}, // -x, +x
	}
	for _, f := range faces {
		m.Triangles = append(m.Triangles, f[0], f[1], f[2], f[0], f[2], f[3])
	}
	return m
}
