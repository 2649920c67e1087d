package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/depthscan/internal/depthcam/scan"
	"github.com/banshee-data/depthscan/internal/monitoring"
)

var logf = monitoring.Prefixed("db")

// LoggedEvent is a row of the camera_events table.
type LoggedEvent struct {
	ID        int64          `json:"id"`
	Kind      scan.EventKind `json:"kind"`
	RunID     string         `json:"run_id"`
	SessionID string         `json:"session_id,omitempty"`
	Frame     uint64         `json:"frame"`
	Time      time.Time      `json:"time"`
	Detail    string         `json:"detail,omitempty"`
}

type eventDetail struct {
	Format   string `json:"format,omitempty"`
	Filename string `json:"filename,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Frames   uint64 `json:"frames,omitempty"`
	Err      string `json:"err,omitempty"`
}

// Recorder writes camera and scan events into the run and session tables.
type Recorder struct {
	db    *DB
	runs  *RunStore
	scans *ScanStore
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db, runs: NewRunStore(db), scans: NewScanStore(db)}
}

// Record appends ev to the event log and applies it to the run or session
// it belongs to.
func (r *Recorder) Record(ev scan.Event) error {
	if err := r.logEvent(ev); err != nil {
		return err
	}
	switch ev.Kind {
	case scan.EventCameraStarted:
		return r.runs.Start(ev.RunID, ev.Time)
	case scan.EventCameraStopped:
		return r.runs.Finish(ev.RunID, ev.Time, ev.Frames, RunStopped, "")
	case scan.EventCameraFailed:
		return r.runs.Finish(ev.RunID, ev.Time, ev.Frame, RunFailed, ev.Err)
	case scan.EventScanStarted:
		_, err := r.scans.Start(ev.SessionID, ev.RunID, ev.Time)
		return err
	case scan.EventScanStopped:
		return r.scans.Stop(ev.SessionID, ev.Time)
	case scan.EventScanSaved:
		return r.scans.Saved(ev.SessionID, ev.Time, ev.Format, ev.Filename)
	case scan.EventScanFailed:
		return r.scans.Failed(ev.SessionID, ev.Time, ev.Format, ev.Filename, ev.Err)
	}
	return nil
}

func (r *Recorder) logEvent(ev scan.Event) error {
	detail := eventDetail{
		Format:   ev.Format,
		Filename: ev.Filename,
		Width:    ev.Preview.Width,
		Height:   ev.Preview.Height,
		Frames:   ev.Frames,
		Err:      ev.Err,
	}
	var text string
	if detail != (eventDetail{}) {
		b, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		text = string(b)
	}
	_, err := r.db.Exec(`
		INSERT INTO camera_events (kind, run_id, session_id, frame, at_ns, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.Kind), ev.RunID, ev.SessionID, int64(ev.Frame), ev.Time.UnixNano(), text)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", ev.Kind, err)
	}
	return nil
}

// Run records events until ctx is done or events is closed. Write errors
// are logged and do not stop the recorder.
func (r *Recorder) Run(ctx context.Context, events <-chan scan.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.Record(ev); err != nil {
				logf("record %s: %v", ev.Kind, err)
			}
		}
	}
}

// Events returns the most recent logged events first. A non-empty runID
// restricts the result to that run.
func (db *DB) Events(runID string, limit int) ([]LoggedEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT event_id, kind, run_id, session_id, frame, at_ns, detail
		FROM camera_events
		WHERE (? = '' OR run_id = ?)
		ORDER BY event_id DESC LIMIT ?`, runID, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []LoggedEvent
	for rows.Next() {
		var (
			e     LoggedEvent
			kind  string
			frame int64
			at    int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.RunID, &e.SessionID, &frame, &at, &e.Detail); err != nil {
			return nil, err
		}
		e.Kind = scan.EventKind(kind)
		e.Frame = uint64(frame)
		e.Time = time.Unix(0, at).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
