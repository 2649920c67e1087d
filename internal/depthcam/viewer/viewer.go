// Package viewer is the consumer side of the frame exchange. A Viewer owns
// the camera's foreground record: it swaps frames on a fixed tick and
// publishes an immutable copy that any number of readers may use.
package viewer

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync/atomic"
	"time"

	"github.com/banshee-data/depthscan/internal/depthcam/frames"
	"github.com/banshee-data/depthscan/internal/timeutil"
)

// Source is the consumer interface of a camera.
type Source interface {
	SwapFrames() bool
	Foreground() *frames.Record
}

// Snapshot is a copy of one frame. It is never modified after publication.
type Snapshot struct {
	Sequence    uint64
	Timestamp   time.Time
	ColorSize   frames.Size
	Color       []byte
	DepthSize   frames.Size
	Depth       []uint16
	PreviewSize frames.Size
	ScanPreview []byte
}

// Viewer polls a Source and keeps the latest Snapshot.
type Viewer struct {
	src      Source
	clock    timeutil.Clock
	interval time.Duration

	latest    atomic.Pointer[Snapshot]
	published atomic.Uint64
}

// New returns a Viewer ticking at fps (15 when fps <= 0).
func New(src Source, fps float64, clock timeutil.Clock) *Viewer {
	if fps <= 0 {
		fps = 15
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Viewer{
		src:      src,
		clock:    clock,
		interval: time.Duration(float64(time.Second) / fps),
	}
}

// Interval is the time between ticks.
func (v *Viewer) Interval() time.Duration { return v.interval }

// Run ticks until ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			v.Tick()
		}
	}
}

// Tick swaps in the latest frame and publishes a snapshot if it was new.
// Only one goroutine may call Tick (Run does).
func (v *Viewer) Tick() bool {
	if !v.src.SwapFrames() {
		return false
	}
	fg := v.src.Foreground()
	snap := &Snapshot{
		Sequence:    fg.Sequence,
		Timestamp:   fg.Timestamp,
		ColorSize:   fg.ColorSize,
		Color:       append([]byte(nil), fg.Color...),
		DepthSize:   fg.DepthSize,
		Depth:       append([]uint16(nil), fg.Depth...),
		PreviewSize: fg.PreviewSize,
		ScanPreview: append([]byte(nil), fg.ScanPreview...),
	}
	v.latest.Store(snap)
	v.published.Add(1)
	return true
}

// Latest returns the most recent snapshot, or nil before the first frame.
func (v *Viewer) Latest() *Snapshot { return v.latest.Load() }

// Published returns how many snapshots have been published.
func (v *Viewer) Published() uint64 { return v.published.Load() }

// ColorImage converts the BGRA color buffer to an image, or nil if empty.
func (s *Snapshot) ColorImage() *image.RGBA {
	return bgraToRGBA(s.ColorSize, s.Color)
}

// PreviewImage converts the BGRA scan preview to an image, or nil if empty.
func (s *Snapshot) PreviewImage() *image.RGBA {
	return bgraToRGBA(s.PreviewSize, s.ScanPreview)
}

// DepthImage returns the depth buffer as a 16-bit grayscale image, or nil
// if empty.
func (s *Snapshot) DepthImage() *image.Gray16 {
	if s.DepthSize.Pixels() == 0 || len(s.Depth) < s.DepthSize.Pixels() {
		return nil
	}
	img := image.NewGray16(image.Rect(0, 0, s.DepthSize.Width, s.DepthSize.Height))
	for y := 0; y < s.DepthSize.Height; y++ {
		for x := 0; x < s.DepthSize.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: s.Depth[y*s.DepthSize.Width+x]})
		}
	}
	return img
}

func bgraToRGBA(size frames.Size, pix []byte) *image.RGBA {
	n := size.Pixels() * frames.ColorBytesPerPixel
	if n == 0 || len(pix) < n {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for i := 0; i < n; i += frames.ColorBytesPerPixel {
		img.Pix[i+0] = pix[i+2]
		img.Pix[i+1] = pix[i+1]
		img.Pix[i+2] = pix[i+0]
		img.Pix[i+3] = 255
	}
	return img
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
