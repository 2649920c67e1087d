package depthcam

import (
	"fmt"
	"strings"

	"github.com/banshee-data/depthscan/internal/depthcam/device"
)

// FeatureSet is a bit set of camera features.
type FeatureSet uint32

const (
	FeatureStreaming FeatureSet = 1 << iota
	FeatureScan3D
)

// Has reports whether all features in f are set.
func (s FeatureSet) Has(f FeatureSet) bool { return s&f == f }

func (s FeatureSet) String() string {
	var names []string
	if s.Has(FeatureStreaming) {
		names = append(names, "streaming")
	}
	if s.Has(FeatureScan3D) {
		names = append(names, "scan3d")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseFeatures builds a FeatureSet from names as written by String.
func ParseFeatures(names []string) (FeatureSet, error) {
	var s FeatureSet
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "streaming":
			s |= FeatureStreaming
		case "scan3d":
			s |= FeatureScan3D
		case "", "none":
		default:
			return 0, fmt.Errorf("unknown feature %q", n)
		}
	}
	return s, nil
}

// CameraModel is the model family of the connected camera.
type CameraModel int

const (
	CameraModelOther CameraModel = iota
	CameraModelF200
	CameraModelR200
	CameraModelSR300
)

func (m CameraModel) String() string {
	switch m {
	case CameraModelF200:
		return "F200"
	case CameraModelR200:
		return "R200"
	case CameraModelSR300:
		return "SR300"
	default:
		return "Other"
	}
}

func cameraModel(m device.Model) CameraModel {
	switch m {
	case device.ModelF200:
		return CameraModelF200
	case device.ModelR200, device.ModelR200Enhanced:
		return CameraModelR200
	case device.ModelSR300:
		return CameraModelSR300
	default:
		return CameraModelOther
	}
}
