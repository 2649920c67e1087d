package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
)

func TestDefaultsFileMatchesDefaultCameraConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultCameraConfig(), cfg); diff != "" {
		t.Errorf("defaults file mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyCameraConfig()

	if got := cfg.GetColorResolution(); got != depthcam.Color640x480x30 {
		t.Errorf("GetColorResolution() = %v, want 640x480x30", got)
	}
	if got := cfg.GetDepthResolution(); got != depthcam.Depth640x480x30 {
		t.Errorf("GetDepthResolution() = %v, want 640x480x30", got)
	}
	if got := cfg.GetFeatures(); got != depthcam.FeatureStreaming|depthcam.FeatureScan3D {
		t.Errorf("GetFeatures() = %v, want streaming,scan3d", got)
	}
	if got := cfg.GetScanMode(); got != device.ScanModeVariable {
		t.Errorf("GetScanMode() = %v, want variable", got)
	}
	if !cfg.GetScanSolidify() || cfg.GetScanTexture() {
		t.Errorf("solidify/texture = %v/%v, want true/false", cfg.GetScanSolidify(), cfg.GetScanTexture())
	}
	if got := cfg.GetScanVolume(); got != (device.Box{Width: 0.5, Height: 0.5, Depth: 0.5}) {
		t.Errorf("GetScanVolume() = %+v", got)
	}
	if got := cfg.GetScanVoxelResolution(); got != 256 {
		t.Errorf("GetScanVoxelResolution() = %d, want 256", got)
	}
	if got := cfg.GetScanFormat(); got != device.FormatOBJ {
		t.Errorf("GetScanFormat() = %v, want obj", got)
	}
	if got := cfg.GetStopTimeout(); got != 2*time.Second {
		t.Errorf("GetStopTimeout() = %v, want 2s", got)
	}
	if got := cfg.GetOutputDir(); got != "scans" {
		t.Errorf("GetOutputDir() = %q", got)
	}
	if got := cfg.GetViewerFPS(); got != 15 {
		t.Errorf("GetViewerFPS() = %v", got)
	}
	if cfg.GetListenAddr() != ":8080" || cfg.GetGRPCAddr() != ":50051" || cfg.GetDatabasePath() != "depthscan.db" {
		t.Errorf("unexpected serving defaults %q %q %q", cfg.GetListenAddr(), cfg.GetGRPCAddr(), cfg.GetDatabasePath())
	}
}

func TestLoadCameraConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "camera.json")

	testJSON := `{
  "color_resolution": "1280x720x30",
  "features": ["streaming"],
  "scan_mode": "head",
  "scan_volume": [0.3, 0.4, 0.5],
  "scan_format": "ply",
  "stop_timeout": "0",
  "viewer_fps": 30
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadCameraConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetColorResolution(); got != depthcam.Color1280x720x30 {
		t.Errorf("GetColorResolution() = %v", got)
	}
	if got := cfg.GetDepthResolution(); got != depthcam.Depth640x480x30 {
		t.Errorf("omitted depth_resolution should default, got %v", got)
	}
	if got := cfg.GetFeatures(); got != depthcam.FeatureStreaming {
		t.Errorf("GetFeatures() = %v", got)
	}
	if got := cfg.GetScanMode(); got != device.ScanModeHead {
		t.Errorf("GetScanMode() = %v", got)
	}
	if got := cfg.GetScanVolume(); got != (device.Box{Width: 0.3, Height: 0.4, Depth: 0.5}) {
		t.Errorf("GetScanVolume() = %+v", got)
	}
	if got := cfg.GetScanFormat(); got != device.FormatPLY {
		t.Errorf("GetScanFormat() = %v", got)
	}
	if got := cfg.GetStopTimeout(); got != 0 {
		t.Errorf("GetStopTimeout() = %v, want 0", got)
	}
	if got := cfg.GetViewerFPS(); got != 30 {
		t.Errorf("GetViewerFPS() = %v", got)
	}
}

func TestLoadCameraConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"wrong extension", write("camera.yaml", "{}"), ".json extension"},
		{"invalid json", write("bad.json", `{"viewer_fps": "fast"`), "failed to parse"},
		{"invalid value", write("invalid.json", `{"scan_mode": "hands"}`), "invalid configuration"},
		{"too large", write("big.json", `{"output_dir": "`+strings.Repeat("a", 1024*1024)+`"}`), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCameraConfig(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadCameraConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	vol := func(w, h, d float32) *[3]float32 { return &[3]float32{w, h, d} }
	tests := []struct {
		name    string
		cfg     *CameraConfig
		wantErr bool
	}{
		{"defaults", DefaultCameraConfig(), false},
		{"empty", &CameraConfig{}, false},
		{"unknown color resolution", &CameraConfig{ColorResolution: ptrString("4096x2160x60")}, true},
		{"unknown depth resolution", &CameraConfig{DepthResolution: ptrString("1x1x1")}, true},
		{"unknown feature", &CameraConfig{Features: []string{"gestures"}}, true},
		{"unknown scan mode", &CameraConfig{ScanMode: ptrString("hands")}, true},
		{"zero scan volume", &CameraConfig{ScanVolume: vol(0.5, 0, 0.5)}, true},
		{"negative voxel resolution", &CameraConfig{ScanVoxelResolution: ptrInt(-1)}, true},
		{"unknown scan format", &CameraConfig{ScanFormat: ptrString("fbx")}, true},
		{"invalid stop timeout", &CameraConfig{StopTimeout: ptrString("soon")}, true},
		{"negative stop timeout", &CameraConfig{StopTimeout: ptrString("-1s")}, true},
		{"zero stop timeout", &CameraConfig{StopTimeout: ptrString("0")}, false},
		{"viewer fps too high", &CameraConfig{ViewerFPS: ptrFloat64(500)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetStopTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  *CameraConfig
		want time.Duration
	}{
		{"unset", &CameraConfig{}, 2 * time.Second},
		{"empty", &CameraConfig{StopTimeout: ptrString("")}, 2 * time.Second},
		{"zero waits forever", &CameraConfig{StopTimeout: ptrString("0")}, 0},
		{"500ms", &CameraConfig{StopTimeout: ptrString("500ms")}, 500 * time.Millisecond},
		{"invalid falls back", &CameraConfig{StopTimeout: ptrString("soon")}, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetStopTimeout(); got != tt.want {
				t.Errorf("GetStopTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}
