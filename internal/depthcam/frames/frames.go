// Package frames implements the triple-buffered exchange between the
// acquisition goroutine and a single consumer goroutine.
//
// Exactly one record is the background (written by the producer), one is
// the mid (the latest completed frame, guarded by a mutex) and one is the
// foreground (read by the consumer). Publishing and acquiring swap pointers;
// payloads are never copied between records.
package frames

import (
	"sync"
	"time"
)

// ColorBytesPerPixel is the stride of color and scan preview buffers (BGRA).
const ColorBytesPerPixel = 4

// Size is an image size in pixels.
type Size struct {
	Width  int
	Height int
}

// Pixels returns Width*Height.
func (s Size) Pixels() int { return s.Width * s.Height }

// Record is one frame slot.
type Record struct {
	// Sequence is assigned by the producer. 0 means never filled.
	Sequence  uint64
	Timestamp time.Time

	ColorSize   Size
	Color       []byte
	DepthSize   Size
	Depth       []uint16
	PreviewSize Size
	ScanPreview []byte
}

func (r *Record) resizeColor(s Size) {
	r.ColorSize = s
	r.Color = make([]byte, s.Pixels()*ColorBytesPerPixel)
}

func (r *Record) resizeDepth(s Size) {
	r.DepthSize = s
	r.Depth = make([]uint16, s.Pixels())
}

func (r *Record) resizePreview(s Size) {
	r.PreviewSize = s
	r.ScanPreview = make([]byte, s.Pixels()*ColorBytesPerPixel)
}

// Triple holds the three records. The zero value is not usable; call New.
type Triple struct {
	records [3]Record

	// Owned by the producer.
	background *Record
	// Owned by the consumer.
	foreground *Record

	mu  sync.Mutex
	mid *Record
	// previewTarget is the size every record's scan preview converges to.
	previewTarget Size
	// resetPending asks the consumer to clear the foreground sequence on its
	// next AcquireLatest.
	resetPending bool
}

// New returns a Triple with empty buffers.
func New() *Triple {
	t := &Triple{}
	t.background = &t.records[0]
	t.mid = &t.records[1]
	t.foreground = &t.records[2]
	return t
}

// Background returns the record the producer fills. Producer only.
func (t *Triple) Background() *Record { return t.background }

// Foreground returns the record the consumer reads. Consumer only; the
// pointer changes on every successful AcquireLatest.
func (t *Triple) Foreground() *Record { return t.foreground }

// PublishBackground makes the filled background the latest frame and takes
// the previous mid as the new background. Producer only.
func (t *Triple) PublishBackground() {
	t.mu.Lock()
	t.background, t.mid = t.mid, t.background
	t.mu.Unlock()
}

// AcquireLatest swaps the foreground with the mid record when the mid holds
// a newer frame, and reports whether it did. Consumer only.
func (t *Triple) AcquireLatest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resetPending {
		t.foreground.Sequence = 0
		t.resetPending = false
	}
	swapped := false
	if t.mid.Sequence > t.foreground.Sequence {
		t.foreground, t.mid = t.mid, t.foreground
		swapped = true
	}
	if t.foreground.PreviewSize != t.previewTarget {
		t.foreground.resizePreview(t.previewTarget)
	}
	return swapped
}

// ResizeColor resizes the color buffer of every record, zero-filled. Only
// valid while the producer is stopped.
func (t *Triple) ResizeColor(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.records {
		t.records[i].resizeColor(Size{width, height})
	}
}

// ResizeDepth resizes the depth buffer of every record, zero-filled. Only
// valid while the producer is stopped.
func (t *Triple) ResizeDepth(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.records {
		t.records[i].resizeDepth(Size{width, height})
	}
}

// ResizeScanPreview resizes the background and mid previews now and sets the
// target size for the foreground, which the consumer applies on its next
// AcquireLatest. Producer only.
func (t *Triple) ResizeScanPreview(width, height int) {
	s := Size{width, height}
	t.background.resizePreview(s)
	t.mu.Lock()
	t.mid.resizePreview(s)
	t.previewTarget = s
	t.mu.Unlock()
}

// PrepareBackground brings a background record that was last sized by the
// consumer up to the current preview size. Producer only, before filling.
func (t *Triple) PrepareBackground() {
	t.mu.Lock()
	target := t.previewTarget
	t.mu.Unlock()
	if t.background.PreviewSize != target {
		t.background.resizePreview(target)
	}
}

// PreviewTarget returns the size scan previews are converging to.
func (t *Triple) PreviewTarget() Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previewTarget
}

// Reset clears the sequence numbers so a restarted producer, counting from
// 1 again, is seen as newer than the consumer's stale foreground. Call
// while the producer is stopped.
func (t *Triple) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.background.Sequence = 0
	t.mid.Sequence = 0
	t.resetPending = true
}

// MidSequence returns the sequence number of the latest published frame.
func (t *Triple) MidSequence() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mid.Sequence
}
