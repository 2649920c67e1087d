package device

import (
	"fmt"
	"time"
)

// StreamKind selects a camera stream.
type StreamKind int

const (
	StreamColor StreamKind = iota
	StreamDepth
)

func (k StreamKind) String() string {
	switch k {
	case StreamColor:
		return "color"
	case StreamDepth:
		return "depth"
	default:
		return fmt.Sprintf("stream(%d)", int(k))
	}
}

// PixelFormat tags the layout of a stream's pixels.
type PixelFormat int

const (
	PixelFormatAny PixelFormat = iota
	PixelFormatRGB24
	PixelFormatRGB32
	PixelFormatYUY2
	PixelFormatDepth
	PixelFormatDepthRaw
)

// ColorBytesPerPixel is the stride of color and scan preview images.
const ColorBytesPerPixel = 4

// StreamResolution is a stream's size, rate and format.
type StreamResolution struct {
	Width  int
	Height int
	FPS    float32
	Format PixelFormat
}

// FrameInterval is the nominal time between frames, or 0 when FPS is unset.
func (r StreamResolution) FrameInterval() time.Duration {
	if r.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(r.FPS))
}

func (r StreamResolution) String() string {
	return fmt.Sprintf("%dx%d@%g", r.Width, r.Height, r.FPS)
}

// ProfileSet is a color/depth pair checked together for support.
type ProfileSet struct {
	Color StreamResolution
	Depth StreamResolution
}

// Image is a single image produced by the device. Color-like images are
// tightly packed BGRA (Pix); depth images carry one uint16 per pixel (Depth).
type Image struct {
	Width  int
	Height int
	Pix    []byte
	Depth  []uint16
}

// Sample is one acquisition from the device. Either image may be nil when
// the stream produced nothing this cycle.
type Sample struct {
	Color *Image
	Depth *Image
}

// Model identifies the hardware as reported by the driver.
type Model int

const (
	ModelUnknown Model = iota
	ModelF200
	ModelR200
	ModelR200Enhanced
	ModelSR300
)

// Firmware is a four part firmware version.
type Firmware [4]int

func (f Firmware) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", f[0], f[1], f[2], f[3])
}

// FieldOfView is a horizontal and vertical field of view in degrees.
type FieldOfView struct {
	Horizontal float32
	Vertical   float32
}

// Info identifies a connected device.
type Info struct {
	Name     string
	Serial   string
	Model    Model
	Firmware Firmware
}

// ScanMode selects the reconstruction target.
type ScanMode int

const (
	ScanModeVariable ScanMode = iota
	ScanModeObjectOnPlanarSurface
	ScanModeFace
	ScanModeHead
	ScanModeBody
)

// ReconstructionOption is a bit set of reconstruction options.
type ReconstructionOption uint32

const (
	OptionNone           ReconstructionOption = 0
	OptionSolidification ReconstructionOption = 1 << 0
	OptionTexture        ReconstructionOption = 1 << 1
)

// ScanConfiguration is the scanner's configuration block.
type ScanConfiguration struct {
	Mode      ScanMode
	Options   ReconstructionOption
	StartScan bool
}

// FileFormat is the output format of a reconstructed mesh.
type FileFormat int

const (
	FormatOBJ FileFormat = iota
	FormatPLY
	FormatSTL
)

func (f FileFormat) String() string {
	switch f {
	case FormatOBJ:
		return "obj"
	case FormatPLY:
		return "ply"
	case FormatSTL:
		return "stl"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFileFormat maps "obj", "ply" or "stl" to a FileFormat.
func ParseFileFormat(s string) (FileFormat, error) {
	switch s {
	case "obj", "OBJ":
		return FormatOBJ, nil
	case "ply", "PLY":
		return FormatPLY, nil
	case "stl", "STL":
		return FormatSTL, nil
	}
	return 0, fmt.Errorf("unknown scan file format %q", s)
}

// Box is a bounding box size in metres.
type Box struct {
	Width  float32
	Height float32
	Depth  float32
}

// Area is the volume the scanner collects data in.
type Area struct {
	Shape      Box
	Resolution int // voxels along the longest side
}
