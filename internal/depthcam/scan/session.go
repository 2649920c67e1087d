// Package scan tracks the incremental 3D reconstruction session. Commands
// are issued from any goroutine and only set flags; Step applies them on the
// acquisition goroutine.
package scan

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/depthcam/frames"
	"github.com/banshee-data/depthscan/internal/monitoring"
	"github.com/banshee-data/depthscan/internal/timeutil"
)

var logf = monitoring.Prefixed("scan")

// ErrNoFilename is returned by SaveScan when no output file is named.
var ErrNoFilename = errors.New("scan filename is empty")

// State is the observable session state.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateReconstructPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateReconstructPending:
		return "reconstruct_pending"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session holds the pending scan commands and the loop-side scan state.
type Session struct {
	clock timeutil.Clock
	emit  func(Event)

	startRequested       atomic.Bool
	stopRequested        atomic.Bool
	reconstructRequested atomic.Bool
	completed            atomic.Bool
	scanning             atomic.Bool

	mu        sync.Mutex
	format    device.FileFormat
	filename  string
	saveSeq   uint64
	sessionID string
	preview   frames.Size
	lastErr   error
}

// NewSession returns an idle session. emit receives every applied
// transition and may be nil.
func NewSession(clock timeutil.Clock, emit func(Event)) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Session{clock: clock, emit: emit}
}

// StartScanning requests that scanning begin on the next iteration.
func (s *Session) StartScanning() {
	s.completed.Store(false)
	s.startRequested.Store(true)
}

// StopScanning requests that scanning pause on the next iteration.
func (s *Session) StopScanning() {
	s.stopRequested.Store(true)
}

// SaveScan requests a reconstruction to filename on the next iteration.
// A request made while an earlier reconstruction is running is kept and
// runs afterwards.
func (s *Session) SaveScan(format device.FileFormat, filename string) error {
	if filename == "" {
		return ErrNoFilename
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	s.filename = filename
	s.saveSeq++
	s.completed.Store(false)
	s.reconstructRequested.Store(true)
	return nil
}

// Completed reports whether the last requested reconstruction has finished.
func (s *Session) Completed() bool { return s.completed.Load() }

// State reports the session state.
func (s *Session) State() State {
	switch {
	case s.reconstructRequested.Load():
		return StateReconstructPending
	case s.scanning.Load():
		return StateScanning
	default:
		return StateIdle
	}
}

// Pending reports which commands have not been applied yet.
func (s *Session) Pending() (start, stop, reconstruct bool) {
	return s.startRequested.Load(), s.stopRequested.Load(), s.reconstructRequested.Load()
}

// SessionID returns the id of the current or most recent scan.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// PreviewResolution returns the last preview size reported by the scanner.
func (s *Session) PreviewResolution() frames.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// LastError returns the error of the last reconstruction, if it failed.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Configure sets the scanner mode and options. Scanning is left stopped.
func (s *Session) Configure(scanner device.Scanner, mode device.ScanMode, solidify, texture bool) error {
	cfg := device.ScanConfiguration{Mode: mode}
	if solidify {
		cfg.Options |= device.OptionSolidification
	}
	if texture {
		cfg.Options |= device.OptionTexture
	}
	if err := scanner.SetConfiguration(cfg); err != nil {
		return fmt.Errorf("configure scanner: %w", err)
	}
	s.scanning.Store(false)
	return nil
}

// SetVolume sets the scanned volume size in metres and its voxel resolution.
func (s *Session) SetVolume(scanner device.Scanner, box device.Box, voxelResolution int) error {
	if err := scanner.SetArea(device.Area{Shape: box, Resolution: voxelResolution}); err != nil {
		return fmt.Errorf("set scan volume: %w", err)
	}
	return nil
}

// Step applies pending commands and copies the scanner preview into the
// background record. Acquisition goroutine only.
func (s *Session) Step(scanner device.Scanner, tr *frames.Triple) error {
	frame := tr.Background().Sequence

	if s.startRequested.Load() {
		if err := s.setStartScan(scanner, true); err != nil {
			return err
		}
		id := uuid.New().String()
		s.mu.Lock()
		s.sessionID = id
		s.mu.Unlock()
		s.scanning.Store(true)
		s.startRequested.Store(false)
		s.emit(Event{Kind: EventScanStarted, Time: s.clock.Now(), SessionID: id, Frame: frame})
	}

	if s.stopRequested.Load() {
		if err := s.setStartScan(scanner, false); err != nil {
			return err
		}
		s.scanning.Store(false)
		s.stopRequested.Store(false)
		s.emit(Event{Kind: EventScanStopped, Time: s.clock.Now(), SessionID: s.SessionID(), Frame: frame})
	}

	if img := scanner.AcquirePreviewImage(); img != nil {
		size := frames.Size{Width: img.Width, Height: img.Height}
		s.mu.Lock()
		changed := size != s.preview
		s.preview = size
		s.mu.Unlock()
		if changed {
			tr.ResizeScanPreview(size.Width, size.Height)
			s.emit(Event{Kind: EventPreviewResized, Time: s.clock.Now(), SessionID: s.SessionID(), Frame: frame, Preview: size})
		}
		copy(tr.Background().ScanPreview, img.Pix)
	}

	if s.reconstructRequested.Load() {
		s.reconstruct(scanner, frame)
	}
	return nil
}

func (s *Session) setStartScan(scanner device.Scanner, start bool) error {
	cfg := scanner.Configuration()
	cfg.StartScan = start
	if err := scanner.SetConfiguration(cfg); err != nil {
		return fmt.Errorf("apply scan start=%t: %w", start, err)
	}
	return nil
}

func (s *Session) reconstruct(scanner device.Scanner, frame uint64) {
	s.mu.Lock()
	format, filename, id, seq := s.format, s.filename, s.sessionID, s.saveSeq
	s.mu.Unlock()

	start := s.clock.Now()
	err := scanner.Reconstruct(format, filename)

	s.mu.Lock()
	s.lastErr = err
	// Only the newest request clears the flag.
	if s.saveSeq == seq {
		s.reconstructRequested.Store(false)
		s.completed.Store(true)
	}
	s.mu.Unlock()

	ev := Event{Kind: EventScanSaved, Time: s.clock.Now(), SessionID: id, Frame: frame, Format: format.String(), Filename: filename}
	if err != nil {
		logf("reconstruct %s to %s failed: %v", format, filename, err)
		ev.Kind = EventScanFailed
		ev.Err = err.Error()
	} else {
		logf("saved scan %s to %s in %v", id, filename, s.clock.Now().Sub(start))
	}

	s.emit(ev)
}
