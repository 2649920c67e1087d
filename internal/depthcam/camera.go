// Package depthcam runs a depth camera on a dedicated acquisition goroutine
// and hands the latest completed frame to a single consumer goroutine.
package depthcam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/depthcam/frames"
	"github.com/banshee-data/depthscan/internal/depthcam/scan"
	"github.com/banshee-data/depthscan/internal/mesh"
	"github.com/banshee-data/depthscan/internal/monitoring"
	"github.com/banshee-data/depthscan/internal/timeutil"
)

var logf = monitoring.Prefixed("depthcam")

var (
	// ErrRunning is returned by configuration calls made while the
	// acquisition loop is running.
	ErrRunning = errors.New("camera is running")

	// ErrInitFailed wraps device initialization failures returned by Start.
	ErrInitFailed = errors.New("camera initialization failed")

	// ErrStreamConfig wraps stream configuration failures.
	ErrStreamConfig = errors.New("stream configuration failed")

	// ErrStopTimeout is returned by Stop when the acquisition goroutine did
	// not exit within the configured timeout.
	ErrStopTimeout = errors.New("timed out waiting for acquisition to stop")

	// ErrNoScanner is returned by scan calls before FeatureScan3D is enabled.
	ErrNoScanner = errors.New("3D scanning is not enabled")
)

// NoCameraMessage is reported once when the camera runs without hardware.
const NoCameraMessage = "No RealSense camera detected"

// Config configures a Camera. The zero value is usable.
type Config struct {
	// StopTimeout bounds how long Stop waits for the acquisition goroutine.
	// Zero waits indefinitely.
	StopTimeout time.Duration

	// ErrorLogInterval rate-limits logging of transient acquisition errors.
	// Defaults to 5s.
	ErrorLogInterval time.Duration

	// Clock defaults to the real clock.
	Clock timeutil.Clock

	// Reporter receives user-facing messages. Each distinct message is
	// reported once. Defaults to monitoring.LogReporter.
	Reporter monitoring.Reporter
}

// Camera owns a Device, the frame triple and the scan session.
type Camera struct {
	dev       device.Device
	hasDevice bool
	info      device.Info
	cfg       Config
	clock     timeutil.Clock
	reporter  monitoring.Reporter

	triple  *frames.Triple
	session *scan.Session

	// runMu serializes Start, Stop and stream configuration.
	runMu    sync.Mutex
	done     chan struct{}
	runID    atomic.Pointer[string]
	stopFlag atomic.Bool

	// featureMu guards the recorded configuration replayed after Stop.
	featureMu  sync.Mutex
	features   FeatureSet
	colorRes   *device.StreamResolution
	depthRes   *device.StreamResolution
	colorOn    atomic.Bool
	depthOn    atomic.Bool
	scanOn     atomic.Bool
	scanner    atomic.Pointer[scannerRef]
	reportedNo atomic.Bool

	errMu   sync.Mutex
	loopErr error

	stats stats

	subMu sync.Mutex
	subs  map[string]chan scan.Event
}

type scannerRef struct{ device.Scanner }

// New returns a stopped Camera driving dev. A nil dev runs the camera in
// degraded mode on a device.Disabled.
func New(dev device.Device, cfg Config) *Camera {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.ErrorLogInterval <= 0 {
		cfg.ErrorLogInterval = 5 * time.Second
	}
	hasDevice := dev != nil
	if dev == nil {
		dev = &device.Disabled{Clock: cfg.Clock}
	}
	if _, ok := dev.(*device.Disabled); ok {
		hasDevice = false
	}
	c := &Camera{
		dev:       dev,
		hasDevice: hasDevice,
		info:      dev.Info(),
		cfg:       cfg,
		clock:     cfg.Clock,
		reporter:  monitoring.NewOnceReporter(cfg.Reporter),
		triple:    frames.New(),
		subs:      make(map[string]chan scan.Event),
	}
	c.session = scan.NewSession(cfg.Clock, c.publish)
	return c
}

// HasDevice reports whether real (or simulated) hardware is attached.
func (c *Camera) HasDevice() bool { return c.hasDevice }

// Session returns the scan session.
func (c *Camera) Session() *scan.Session { return c.session }

// Running reports whether the acquisition goroutine is alive.
func (c *Camera) Running() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.aliveLocked()
}

func (c *Camera) aliveLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// RunID returns the id of the current or most recent run.
func (c *Camera) RunID() string {
	if id := c.runID.Load(); id != nil {
		return *id
	}
	return ""
}

// Err returns the error that ended the last run, if any.
func (c *Camera) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.loopErr
}

func (c *Camera) setErr(err error) {
	c.errMu.Lock()
	c.loopErr = err
	c.errMu.Unlock()
}

// Start spawns the acquisition goroutine and waits for the device to
// initialize. It is a no-op while running. The goroutine also exits when ctx
// is cancelled; Stop must still be called to release the device.
func (c *Camera) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.done != nil {
		if c.aliveLocked() {
			if c.stopFlag.Load() {
				return fmt.Errorf("start camera: previous run still exiting: %w", ErrStopTimeout)
			}
			return nil
		}
		// The loop ended on its own; release the device before restarting.
		c.finishStopLocked()
	}

	c.triple.Reset()
	c.stopFlag.Store(false)
	c.setErr(nil)
	c.stats.reset()
	runID := uuid.New().String()
	c.runID.Store(&runID)

	initErr := make(chan error, 1)
	done := make(chan struct{})
	c.done = done
	go c.acquisitionLoop(ctx, initErr, done)

	if err := <-initErr; err != nil {
		<-done
		c.done = nil
		c.setErr(err)
		c.publish(scan.Event{Kind: scan.EventCameraFailed, Err: err.Error()})
		return fmt.Errorf("start camera: %w: %w", ErrInitFailed, err)
	}
	return nil
}

// Stop asks the acquisition goroutine to exit after its current iteration,
// waits for it, closes the device session and re-applies the recorded
// features and stream resolutions. It is a no-op while stopped.
//
// With a StopTimeout set, Stop returns ErrStopTimeout if the goroutine is
// still blocked in the device; the camera stays running until a later Stop
// observes the exit.
func (c *Camera) Stop() error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.done == nil {
		return nil
	}
	c.stopFlag.Store(true)

	if c.cfg.StopTimeout > 0 {
		select {
		case <-c.done:
		case <-c.clock.After(c.cfg.StopTimeout):
			logf("acquisition did not stop within %v", c.cfg.StopTimeout)
			return ErrStopTimeout
		}
	} else {
		<-c.done
	}
	c.finishStopLocked()
	return nil
}

func (c *Camera) finishStopLocked() {
	if err := c.dev.Close(); err != nil {
		logf("close device: %v", err)
	}
	c.done = nil
	c.stopFlag.Store(false)

	c.featureMu.Lock()
	features := c.features
	colorRes, depthRes := c.colorRes, c.depthRes
	c.featureMu.Unlock()

	if err := c.EnableFeatures(features); err != nil {
		logf("re-enable features %s: %v", features, err)
	}
	if colorRes != nil {
		if err := c.dev.EnableStream(device.StreamColor, *colorRes); err != nil {
			logf("re-enable color stream %s: %v", colorRes, err)
		}
	}
	if depthRes != nil {
		if err := c.dev.EnableStream(device.StreamDepth, *depthRes); err != nil {
			logf("re-enable depth stream %s: %v", depthRes, err)
		}
	}

	st := c.stats.snapshot()
	logf("stopped run %s after %d frames", c.RunID(), st.Frames)
	c.publish(scan.Event{Kind: scan.EventCameraStopped, Frames: st.Frames})
}

// EnableFeatures records features and turns them on. Streaming enables
// color and depth copies; Scan3D enables the scan subsystem. Calling it again
// with a different set updates the enabled subsystems. Buffers already sized
// by resolution calls are left alone.
func (c *Camera) EnableFeatures(features FeatureSet) error {
	if !c.hasDevice && c.reportedNo.CompareAndSwap(false, true) {
		c.reporter.Report(NoCameraMessage)
	}

	c.featureMu.Lock()
	c.features = features
	c.featureMu.Unlock()

	streaming := features.Has(FeatureStreaming)
	c.colorOn.Store(streaming)
	c.depthOn.Store(streaming)

	if features.Has(FeatureScan3D) {
		if c.scanner.Load() == nil {
			sc, err := c.dev.Enable3DScan()
			if err != nil {
				c.scanOn.Store(false)
				return fmt.Errorf("enable 3D scan: %w", err)
			}
			c.scanner.Store(&scannerRef{sc})
		}
		c.scanOn.Store(true)
	} else {
		c.scanOn.Store(false)
	}
	return nil
}

// Features returns the recorded feature set.
func (c *Camera) Features() FeatureSet {
	c.featureMu.Lock()
	defer c.featureMu.Unlock()
	return c.features
}

// Enabled reports the live color, depth and scan flags.
func (c *Camera) Enabled() (color, depth, scan3D bool) {
	return c.colorOn.Load(), c.depthOn.Load(), c.scanOn.Load()
}

// SetColorResolution enables the color stream at res and resizes every
// frame's color buffer, zero-filled. It fails with ErrRunning while running.
func (c *Camera) SetColorResolution(res ColorResolution) error {
	r, ok := res.Value()
	if !ok {
		return fmt.Errorf("set color resolution %d: %w", int(res), ErrStreamConfig)
	}
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.aliveLocked() {
		return ErrRunning
	}
	if err := c.dev.EnableStream(device.StreamColor, r); err != nil {
		return fmt.Errorf("enable color stream %s: %w: %w", r, ErrStreamConfig, err)
	}
	c.featureMu.Lock()
	c.colorRes = &r
	c.featureMu.Unlock()
	c.triple.ResizeColor(r.Width, r.Height)
	return nil
}

// SetDepthResolution enables the depth stream at res and resizes every
// frame's depth buffer, zero-filled. It fails with ErrRunning while running.
func (c *Camera) SetDepthResolution(res DepthResolution) error {
	r, ok := res.Value()
	if !ok {
		return fmt.Errorf("set depth resolution %d: %w", int(res), ErrStreamConfig)
	}
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.aliveLocked() {
		return ErrRunning
	}
	if err := c.dev.EnableStream(device.StreamDepth, r); err != nil {
		return fmt.Errorf("enable depth stream %s: %w: %w", r, ErrStreamConfig, err)
	}
	c.featureMu.Lock()
	c.depthRes = &r
	c.featureMu.Unlock()
	c.triple.ResizeDepth(r.Width, r.Height)
	return nil
}

// Resolutions returns the configured color and depth stream resolutions.
func (c *Camera) Resolutions() (color, depth device.StreamResolution) {
	c.featureMu.Lock()
	defer c.featureMu.Unlock()
	if c.colorRes != nil {
		color = *c.colorRes
	}
	if c.depthRes != nil {
		depth = *c.depthRes
	}
	return color, depth
}

// IsStreamSetValid reports whether the device can stream both resolutions
// together.
func (c *Camera) IsStreamSetValid(color ColorResolution, depth DepthResolution) bool {
	cr, ok := color.Value()
	if !ok {
		return false
	}
	dr, ok := depth.Value()
	if !ok {
		return false
	}
	return c.dev.IsStreamProfileSetValid(device.ProfileSet{Color: cr, Depth: dr})
}

// GetCameraModel returns the model family of the connected camera.
func (c *Camera) GetCameraModel() CameraModel { return cameraModel(c.info.Model) }

// CameraFirmware returns the firmware version as "a.b.c.d".
func (c *Camera) CameraFirmware() string { return c.info.Firmware.String() }

// Info returns the device identification.
func (c *Camera) Info() device.Info { return c.info }

// ColorFieldOfView returns the color stream's field of view in degrees.
func (c *Camera) ColorFieldOfView() device.FieldOfView {
	return c.dev.FieldOfView(device.StreamColor)
}

// DepthFieldOfView returns the depth stream's field of view in degrees.
func (c *Camera) DepthFieldOfView() device.FieldOfView {
	return c.dev.FieldOfView(device.StreamDepth)
}

// SwapFrames makes the latest completed frame the foreground if it is newer
// and reports whether it was. Call it from the single consumer goroutine.
func (c *Camera) SwapFrames() bool {
	return c.triple.AcquireLatest()
}

// Foreground returns the consumer's current frame. The record belongs to the
// consumer goroutine until its next SwapFrames.
func (c *Camera) Foreground() *frames.Record {
	return c.triple.Foreground()
}

func (c *Camera) currentScanner() (device.Scanner, error) {
	ref := c.scanner.Load()
	if ref == nil {
		return nil, ErrNoScanner
	}
	return ref.Scanner, nil
}

// ConfigureScanning sets the scan mode and options with scanning stopped.
func (c *Camera) ConfigureScanning(mode device.ScanMode, solidify, texture bool) error {
	sc, err := c.currentScanner()
	if err != nil {
		return err
	}
	return c.session.Configure(sc, mode, solidify, texture)
}

// SetScanningVolume sets the scanned volume in metres and its voxel
// resolution.
func (c *Camera) SetScanningVolume(box device.Box, voxelResolution int) error {
	sc, err := c.currentScanner()
	if err != nil {
		return err
	}
	return c.session.SetVolume(sc, box, voxelResolution)
}

// StartScanning asks the acquisition loop to begin scanning.
func (c *Camera) StartScanning() error {
	if _, err := c.currentScanner(); err != nil {
		return err
	}
	c.session.StartScanning()
	return nil
}

// StopScanning asks the acquisition loop to pause scanning.
func (c *Camera) StopScanning() error {
	if _, err := c.currentScanner(); err != nil {
		return err
	}
	c.session.StopScanning()
	return nil
}

// SaveScan asks the acquisition loop to reconstruct the scan to filename.
// Poll ScanCompleted for the result.
func (c *Camera) SaveScan(format device.FileFormat, filename string) error {
	if _, err := c.currentScanner(); err != nil {
		return err
	}
	return c.session.SaveScan(format, filename)
}

// ScanCompleted reports whether the last SaveScan has finished.
func (c *Camera) ScanCompleted() bool { return c.session.Completed() }

// LoadScan reads a saved scan ready for display.
func (c *Camera) LoadScan(filename string) (*mesh.Mesh, error) {
	return mesh.Load(filename)
}
