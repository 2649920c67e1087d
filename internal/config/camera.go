package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
)

// DefaultConfigPath is the path to the canonical camera defaults file.
const DefaultConfigPath = "config/depthscan.defaults.json"

// CameraConfig is the startup configuration of depthscan. Every field is
// optional; the Get* methods supply defaults for missing values.
type CameraConfig struct {
	// Streams
	ColorResolution *string  `json:"color_resolution,omitempty"` // e.g. "640x480x30"
	DepthResolution *string  `json:"depth_resolution,omitempty"` // e.g. "320x240x30"
	Features        []string `json:"features,omitempty"`         // "streaming", "scan3d"

	// Scanning
	ScanMode            *string     `json:"scan_mode,omitempty"` // variable, object, face, head, body
	ScanSolidify        *bool       `json:"scan_solidify,omitempty"`
	ScanTexture         *bool       `json:"scan_texture,omitempty"`
	ScanVolume          *[3]float32 `json:"scan_volume,omitempty"` // width, height, depth in metres
	ScanVoxelResolution *int        `json:"scan_voxel_resolution,omitempty"`
	ScanFormat          *string     `json:"scan_format,omitempty"` // obj, ply, stl

	// Lifecycle
	StopTimeout *string `json:"stop_timeout,omitempty"` // duration string like "2s"; "0" waits forever

	// Output and serving
	OutputDir    *string  `json:"output_dir,omitempty"`
	ViewerFPS    *float64 `json:"viewer_fps,omitempty"`
	ListenAddr   *string  `json:"listen_addr,omitempty"`
	GRPCAddr     *string  `json:"grpc_addr,omitempty"`
	DatabasePath *string  `json:"database_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

var scanModes = map[string]device.ScanMode{
	"variable": device.ScanModeVariable,
	"object":   device.ScanModeObjectOnPlanarSurface,
	"face":     device.ScanModeFace,
	"head":     device.ScanModeHead,
	"body":     device.ScanModeBody,
}

// EmptyCameraConfig returns a CameraConfig with all fields unset.
func EmptyCameraConfig() *CameraConfig {
	return &CameraConfig{}
}

// DefaultCameraConfig returns a CameraConfig with every field set to its
// default.
func DefaultCameraConfig() *CameraConfig {
	return &CameraConfig{
		ColorResolution:     ptrString("640x480x30"),
		DepthResolution:     ptrString("640x480x30"),
		Features:            []string{"streaming", "scan3d"},
		ScanMode:            ptrString("variable"),
		ScanSolidify:        ptrBool(true),
		ScanTexture:         ptrBool(false),
		ScanVolume:          &[3]float32{0.5, 0.5, 0.5},
		ScanVoxelResolution: ptrInt(256),
		ScanFormat:          ptrString("obj"),
		StopTimeout:         ptrString("2s"),
		OutputDir:           ptrString("scans"),
		ViewerFPS:           ptrFloat64(15),
		ListenAddr:          ptrString(":8080"),
		GRPCAddr:            ptrString(":50051"),
		DatabasePath:        ptrString("depthscan.db"),
	}
}

// LoadCameraConfig loads a CameraConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to defaults through the Get*
// methods, so partial configs are safe.
func LoadCameraConfig(path string) (*CameraConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCameraConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *CameraConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/depthcam/*
	}
	for _, path := range candidates {
		if cfg, err := LoadCameraConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *CameraConfig) Validate() error {
	if c.ColorResolution != nil {
		if _, err := depthcam.ParseColorResolution(*c.ColorResolution); err != nil {
			return err
		}
	}
	if c.DepthResolution != nil {
		if _, err := depthcam.ParseDepthResolution(*c.DepthResolution); err != nil {
			return err
		}
	}
	if _, err := depthcam.ParseFeatures(c.Features); err != nil {
		return err
	}
	if c.ScanMode != nil {
		if _, ok := scanModes[*c.ScanMode]; !ok {
			return fmt.Errorf("unknown scan_mode %q", *c.ScanMode)
		}
	}
	if c.ScanVolume != nil {
		for i, v := range c.ScanVolume {
			if v <= 0 {
				return fmt.Errorf("scan_volume[%d] must be positive, got %g", i, v)
			}
		}
	}
	if c.ScanVoxelResolution != nil && *c.ScanVoxelResolution <= 0 {
		return fmt.Errorf("scan_voxel_resolution must be positive, got %d", *c.ScanVoxelResolution)
	}
	if c.ScanFormat != nil {
		if _, err := device.ParseFileFormat(*c.ScanFormat); err != nil {
			return err
		}
	}
	if c.StopTimeout != nil && *c.StopTimeout != "" && *c.StopTimeout != "0" {
		d, err := time.ParseDuration(*c.StopTimeout)
		if err != nil {
			return fmt.Errorf("invalid stop_timeout '%s': %w", *c.StopTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("stop_timeout must be non-negative, got %v", d)
		}
	}
	if c.ViewerFPS != nil && (*c.ViewerFPS <= 0 || *c.ViewerFPS > 120) {
		return fmt.Errorf("viewer_fps must be in (0, 120], got %g", *c.ViewerFPS)
	}
	return nil
}

// GetColorResolution returns the color stream resolution or the default.
func (c *CameraConfig) GetColorResolution() depthcam.ColorResolution {
	if c.ColorResolution == nil {
		return depthcam.Color640x480x30
	}
	r, err := depthcam.ParseColorResolution(*c.ColorResolution)
	if err != nil {
		return depthcam.Color640x480x30
	}
	return r
}

// GetDepthResolution returns the depth stream resolution or the default.
func (c *CameraConfig) GetDepthResolution() depthcam.DepthResolution {
	if c.DepthResolution == nil {
		return depthcam.Depth640x480x30
	}
	r, err := depthcam.ParseDepthResolution(*c.DepthResolution)
	if err != nil {
		return depthcam.Depth640x480x30
	}
	return r
}

// GetFeatures returns the enabled feature set. Without a features list both
// streaming and 3D scanning are enabled.
func (c *CameraConfig) GetFeatures() depthcam.FeatureSet {
	if c.Features == nil {
		return depthcam.FeatureStreaming | depthcam.FeatureScan3D
	}
	s, err := depthcam.ParseFeatures(c.Features)
	if err != nil {
		return depthcam.FeatureStreaming | depthcam.FeatureScan3D
	}
	return s
}

// GetScanMode returns the scan mode or the default.
func (c *CameraConfig) GetScanMode() device.ScanMode {
	if c.ScanMode == nil {
		return device.ScanModeVariable
	}
	return scanModes[*c.ScanMode]
}

// GetScanSolidify returns the scan_solidify value or the default.
func (c *CameraConfig) GetScanSolidify() bool {
	if c.ScanSolidify == nil {
		return true
	}
	return *c.ScanSolidify
}

// GetScanTexture returns the scan_texture value or the default.
func (c *CameraConfig) GetScanTexture() bool {
	if c.ScanTexture == nil {
		return false
	}
	return *c.ScanTexture
}

// GetScanVolume returns the scanned volume or the default 0.5m cube.
func (c *CameraConfig) GetScanVolume() device.Box {
	if c.ScanVolume == nil {
		return device.Box{Width: 0.5, Height: 0.5, Depth: 0.5}
	}
	v := *c.ScanVolume
	return device.Box{Width: v[0], Height: v[1], Depth: v[2]}
}

// GetScanVoxelResolution returns the voxel resolution or the default.
func (c *CameraConfig) GetScanVoxelResolution() int {
	if c.ScanVoxelResolution == nil {
		return 256
	}
	return *c.ScanVoxelResolution
}

// GetScanFormat returns the output mesh format or the default.
func (c *CameraConfig) GetScanFormat() device.FileFormat {
	if c.ScanFormat == nil {
		return device.FormatOBJ
	}
	f, err := device.ParseFileFormat(*c.ScanFormat)
	if err != nil {
		return device.FormatOBJ
	}
	return f
}

// GetStopTimeout parses and returns StopTimeout. Zero means Stop waits
// indefinitely.
func (c *CameraConfig) GetStopTimeout() time.Duration {
	if c.StopTimeout == nil || *c.StopTimeout == "" {
		return 2 * time.Second // default
	}
	if *c.StopTimeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(*c.StopTimeout)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetOutputDir returns the scan output directory or the default.
func (c *CameraConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "scans"
	}
	return *c.OutputDir
}

// GetViewerFPS returns the viewer tick rate or the default.
func (c *CameraConfig) GetViewerFPS() float64 {
	if c.ViewerFPS == nil {
		return 15
	}
	return *c.ViewerFPS
}

// GetListenAddr returns the HTTP listen address or the default.
func (c *CameraConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetGRPCAddr returns the gRPC listen address or the default.
func (c *CameraConfig) GetGRPCAddr() string {
	if c.GRPCAddr == nil || *c.GRPCAddr == "" {
		return ":50051"
	}
	return *c.GRPCAddr
}

// GetDatabasePath returns the SQLite database path or the default.
func (c *CameraConfig) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "depthscan.db"
	}
	return *c.DatabasePath
}
