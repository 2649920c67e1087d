package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthscan/internal/config"
	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/monitoring"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configPath)
	assert.Equal(t, "", *listen)
	assert.Equal(t, "", *grpcListen)
	assert.Equal(t, "", *dbPath)
	assert.False(t, *devMode)
	assert.False(t, *disableCamera)
	assert.False(t, *showVersion)
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	// the default config path is relative to the repo root, not this package
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCameraConfig(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cam.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"viewer_fps": 10, "features": ["streaming"]}`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.GetViewerFPS())
	assert.Equal(t, depthcam.FeatureStreaming, cfg.GetFeatures())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	orig := *listen
	t.Cleanup(func() { *listen = orig })
	*listen = ":9999"

	cfg := config.DefaultCameraConfig()
	applyFlags(cfg)
	assert.Equal(t, ":9999", cfg.GetListenAddr())
	assert.Equal(t, config.DefaultCameraConfig().GetGRPCAddr(), cfg.GetGRPCAddr())
}

func TestNewDevice(t *testing.T) {
	assert.Nil(t, newDevice(false))
	_, ok := newDevice(true).(*device.Synthetic)
	assert.True(t, ok)
}

func TestConfigureCamera(t *testing.T) {
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	cfg := config.DefaultCameraConfig()

	t.Run("synthetic", func(t *testing.T) {
		cam := depthcam.New(newDevice(true), depthcam.Config{})
		require.NoError(t, configureCamera(cam, cfg))
		assert.Equal(t, depthcam.FeatureStreaming|depthcam.FeatureScan3D, cam.Features())
		color, depth := cam.Resolutions()
		assert.Equal(t, 640, color.Width)
		assert.Equal(t, 480, depth.Height)
	})

	t.Run("no device", func(t *testing.T) {
		cam := depthcam.New(nil, depthcam.Config{})
		require.NoError(t, configureCamera(cam, cfg))
		assert.False(t, cam.HasDevice())
	})
}
