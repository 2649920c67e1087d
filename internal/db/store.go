package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run or session id has no row.
var ErrNotFound = errors.New("not found")

// Run status values.
const (
	RunRunning = "running"
	RunStopped = "stopped"
	RunFailed  = "failed"
)

// Scan status values.
const (
	ScanScanning = "scanning"
	ScanStopped  = "stopped"
	ScanSaved    = "saved"
	ScanFailed   = "failed"
)

// CameraRun is one Start..Stop span of the acquisition loop.
type CameraRun struct {
	RunID     string     `json:"run_id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Frames    uint64     `json:"frames"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
}

// ScanSession is one scan from StartScanning to its reconstruction.
type ScanSession struct {
	SessionID string     `json:"session_id"`
	RunID     string     `json:"run_id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	SavedAt   *time.Time `json:"saved_at,omitempty"`
	Format    string     `json:"format,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
}

func nsTime(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(0, ns.Int64).UTC()
	return &t
}

// RunStore persists camera runs.
type RunStore struct {
	db *DB
}

func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Start records a running camera run.
func (s *RunStore) Start(runID string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO camera_runs (run_id, started_ns, status) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING`,
		runID, at.UnixNano(), RunRunning)
	if err != nil {
		return fmt.Errorf("insert camera run: %w", err)
	}
	return nil
}

// Finish closes a run. A run that never reported started (an init failure)
// is inserted here. A failed run keeps its failed status when the later
// release reports it stopped.
func (s *RunStore) Finish(runID string, at time.Time, frames uint64, status, errMsg string) error {
	_, err := s.db.Exec(`
		INSERT INTO camera_runs (run_id, started_ns, stopped_ns, frames, status, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			stopped_ns = excluded.stopped_ns,
			frames = MAX(camera_runs.frames, excluded.frames),
			status = CASE WHEN camera_runs.status = 'failed' THEN 'failed' ELSE excluded.status END,
			error = CASE WHEN camera_runs.error != '' THEN camera_runs.error ELSE excluded.error END`,
		runID, at.UnixNano(), at.UnixNano(), int64(frames), status, errMsg)
	if err != nil {
		return fmt.Errorf("finish camera run %s: %w", runID, err)
	}
	return nil
}

// Get returns one run.
func (s *RunStore) Get(runID string) (*CameraRun, error) {
	row := s.db.QueryRow(`
		SELECT run_id, started_ns, stopped_ns, frames, status, error
		FROM camera_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("camera run %s: %w", runID, ErrNotFound)
	}
	return r, err
}

// List returns the most recent runs first, at most limit rows.
func (s *RunStore) List(limit int) ([]CameraRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT run_id, started_ns, stopped_ns, frames, status, error
		FROM camera_runs ORDER BY started_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []CameraRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*CameraRun, error) {
	var (
		r       CameraRun
		started int64
		stopped sql.NullInt64
		frames  int64
	)
	if err := row.Scan(&r.RunID, &started, &stopped, &frames, &r.Status, &r.Error); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.StoppedAt = nsTime(stopped)
	r.Frames = uint64(frames)
	return &r, nil
}

// ScanStore persists scan sessions.
type ScanStore struct {
	db *DB
}

func NewScanStore(db *DB) *ScanStore {
	return &ScanStore{db: db}
}

// Start records a scanning session and returns its id. An empty sessionID
// is replaced with a fresh UUID.
func (s *ScanStore) Start(sessionID, runID string, at time.Time) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO scan_sessions (session_id, run_id, started_ns, status) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		sessionID, runID, at.UnixNano(), ScanScanning)
	if err != nil {
		return "", fmt.Errorf("insert scan session: %w", err)
	}
	return sessionID, nil
}

// Stop marks a session stopped.
func (s *ScanStore) Stop(sessionID string, at time.Time) error {
	return s.update(sessionID, `
		UPDATE scan_sessions SET stopped_ns = ?, status = ?
		WHERE session_id = ? AND status = 'scanning'`,
		at.UnixNano(), ScanStopped, sessionID)
}

// Saved records a successful reconstruction.
func (s *ScanStore) Saved(sessionID string, at time.Time, format, filename string) error {
	return s.update(sessionID, `
		UPDATE scan_sessions SET saved_ns = ?, format = ?, filename = ?, status = ?, error = ''
		WHERE session_id = ?`,
		at.UnixNano(), format, filename, ScanSaved, sessionID)
}

// Failed records a failed reconstruction.
func (s *ScanStore) Failed(sessionID string, at time.Time, format, filename, errMsg string) error {
	return s.update(sessionID, `
		UPDATE scan_sessions SET saved_ns = ?, format = ?, filename = ?, status = ?, error = ?
		WHERE session_id = ?`,
		at.UnixNano(), format, filename, ScanFailed, errMsg, sessionID)
}

func (s *ScanStore) update(sessionID, query string, args ...any) error {
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update scan session %s: %w", sessionID, err)
	}
	return nil
}

// Get returns one session.
func (s *ScanStore) Get(sessionID string) (*ScanSession, error) {
	row := s.db.QueryRow(`
		SELECT session_id, run_id, started_ns, stopped_ns, saved_ns, format, filename, status, error
		FROM scan_sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan session %s: %w", sessionID, ErrNotFound)
	}
	return sess, err
}

// List returns the most recent sessions first. A non-empty runID restricts
// the result to that run.
func (s *ScanStore) List(runID string, limit int) ([]ScanSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT session_id, run_id, started_ns, stopped_ns, saved_ns, format, filename, status, error
		FROM scan_sessions
		WHERE (? = '' OR run_id = ?)
		ORDER BY started_ns DESC LIMIT ?`, runID, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ScanSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*ScanSession, error) {
	var (
		s              ScanSession
		started        int64
		stopped, saved sql.NullInt64
	)
	if err := row.Scan(&s.SessionID, &s.RunID, &started, &stopped, &saved, &s.Format, &s.Filename, &s.Status, &s.Error); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	s.StoppedAt = nsTime(stopped)
	s.SavedAt = nsTime(saved)
	return &s, nil
}
