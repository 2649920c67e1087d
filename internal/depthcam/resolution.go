package depthcam

import (
	"fmt"

	"github.com/banshee-data/depthscan/internal/depthcam/device"
)

// ColorResolution enumerates the supported color stream modes.
type ColorResolution int

const (
	ColorUndefined ColorResolution = iota
	Color1920x1080x30
	Color1280x720x30
	Color960x540x30
	Color848x480x30
	Color640x480x30
	Color640x360x30
	Color424x240x30
	Color320x240x30
	Color320x180x30
)

// DepthResolution enumerates the supported depth stream modes.
type DepthResolution int

const (
	DepthUndefined DepthResolution = iota
	Depth640x480x30
	Depth628x468x30
	Depth480x360x30
	Depth320x240x30
)

type namedResolution struct {
	name string
	res  device.StreamResolution
}

var colorResolutions = map[ColorResolution]namedResolution{
	Color1920x1080x30: {"1920x1080x30", device.StreamResolution{Width: 1920, Height: 1080, FPS: 30, Format: device.PixelFormatRGB32}},
	Color1280x720x30:  {"1280x720x30", device.StreamResolution{Width: 1280, Height: 720, FPS: 30, Format: device.PixelFormatRGB32}},
	Color960x540x30:   {"960x540x30", device.StreamResolution{Width: 960, Height: 540, FPS: 30, Format: device.PixelFormatRGB32}},
	Color848x480x30:   {"848x480x30", device.StreamResolution{Width: 848, Height: 480, FPS: 30, Format: device.PixelFormatRGB32}},
	Color640x480x30:   {"640x480x30", device.StreamResolution{Width: 640, Height: 480, FPS: 30, Format: device.PixelFormatRGB32}},
	Color640x360x30:   {"640x360x30", device.StreamResolution{Width: 640, Height: 360, FPS: 30, Format: device.PixelFormatRGB32}},
	Color424x240x30:   {"424x240x30", device.StreamResolution{Width: 424, Height: 240, FPS: 30, Format: device.PixelFormatRGB32}},
	Color320x240x30:   {"320x240x30", device.StreamResolution{Width: 320, Height: 240, FPS: 30, Format: device.PixelFormatRGB32}},
	Color320x180x30:   {"320x180x30", device.StreamResolution{Width: 320, Height: 180, FPS: 30, Format: device.PixelFormatRGB32}},
}

var depthResolutions = map[DepthResolution]namedResolution{
	Depth640x480x30: {"640x480x30", device.StreamResolution{Width: 640, Height: 480, FPS: 30, Format: device.PixelFormatDepth}},
	Depth628x468x30: {"628x468x30", device.StreamResolution{Width: 628, Height: 468, FPS: 30, Format: device.PixelFormatDepth}},
	Depth480x360x30: {"480x360x30", device.StreamResolution{Width: 480, Height: 360, FPS: 30, Format: device.PixelFormatDepth}},
	Depth320x240x30: {"320x240x30", device.StreamResolution{Width: 320, Height: 240, FPS: 30, Format: device.PixelFormatDepth}},
}

// Value returns the stream resolution r stands for.
func (r ColorResolution) Value() (device.StreamResolution, bool) {
	n, ok := colorResolutions[r]
	return n.res, ok
}

func (r ColorResolution) String() string {
	if n, ok := colorResolutions[r]; ok {
		return n.name
	}
	return "undefined"
}

// Value returns the stream resolution r stands for.
func (r DepthResolution) Value() (device.StreamResolution, bool) {
	n, ok := depthResolutions[r]
	return n.res, ok
}

func (r DepthResolution) String() string {
	if n, ok := depthResolutions[r]; ok {
		return n.name
	}
	return "undefined"
}

// ParseColorResolution accepts names such as "640x480x30".
func ParseColorResolution(s string) (ColorResolution, error) {
	for k, n := range colorResolutions {
		if n.name == s {
			return k, nil
		}
	}
	return ColorUndefined, fmt.Errorf("unknown color resolution %q", s)
}

// ParseDepthResolution accepts names such as "320x240x30".
func ParseDepthResolution(s string) (DepthResolution, error) {
	for k, n := range depthResolutions {
		if n.name == s {
			return k, nil
		}
	}
	return DepthUndefined, fmt.Errorf("unknown depth resolution %q", s)
}
