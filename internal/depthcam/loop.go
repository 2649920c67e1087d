package depthcam

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/depthcam/scan"
)

// temporary is implemented by device errors that should skip a frame rather
// than end the run.
type temporary interface {
	Temporary() bool
}

func isTransient(err error) bool {
	if errors.Is(err, device.ErrNoSample) {
		return true
	}
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

// acquisitionLoop initializes the device, reports the result on initErr and
// then produces frames until the stop flag is set, ctx is done or the device
// fails. It closes done on exit.
func (c *Camera) acquisitionLoop(ctx context.Context, initErr chan<- error, done chan struct{}) {
	defer close(done)

	if err := c.dev.Init(); err != nil {
		initErr <- err
		return
	}
	logf("started run %s", c.RunID())
	c.publish(scan.Event{Kind: scan.EventCameraStarted})
	initErr <- nil

	var (
		seq        uint64
		lastLogged time.Time
		suppressed int
	)
	for !c.stopFlag.Load() {
		if err := ctx.Err(); err != nil {
			logf("acquisition cancelled: %v", err)
			return
		}

		c.triple.PrepareBackground()
		sample, err := c.dev.AcquireSample()
		if err != nil {
			if !isTransient(err) {
				logf("acquisition failed: %v", err)
				c.setErr(err)
				c.reporter.Report("Camera acquisition failed: " + err.Error())
				c.publish(scan.Event{Kind: scan.EventCameraFailed, Frame: seq, Err: err.Error()})
				return
			}
			c.stats.skip()
			if !errors.Is(err, device.ErrNoSample) {
				now := c.clock.Now()
				if now.Sub(lastLogged) >= c.cfg.ErrorLogInterval {
					logf("skipping frame: %v (%d similar suppressed)", err, suppressed)
					lastLogged, suppressed = now, 0
				} else {
					suppressed++
				}
			}
			continue
		}

		seq++
		bg := c.triple.Background()
		bg.Sequence = seq
		bg.Timestamp = c.clock.Now()

		if sample != nil {
			if c.colorOn.Load() && sample.Color != nil {
				copy(bg.Color, sample.Color.Pix)
			}
			if c.depthOn.Load() && sample.Depth != nil {
				copy(bg.Depth, sample.Depth.Depth)
			}
		}

		if c.scanOn.Load() {
			if ref := c.scanner.Load(); ref != nil {
				if err := c.session.Step(ref.Scanner, c.triple); err != nil {
					logf("scan step: %v", err)
				}
			}
		}

		c.dev.ReleaseSample()
		c.triple.PublishBackground()
		c.stats.frame(bg.Timestamp)
	}
}
