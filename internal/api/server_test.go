package api

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthscan/internal/db"
	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/depthcam/viewer"
	"github.com/banshee-data/depthscan/internal/fsutil"
	"github.com/banshee-data/depthscan/internal/testutil"
)

const waitFor = 3 * time.Second

type fakeSessions struct {
	runID    string
	limit    int
	sessions []db.ScanSession
}

func (f *fakeSessions) List(runID string, limit int) ([]db.ScanSession, error) {
	f.runID, f.limit = runID, limit
	return f.sessions, nil
}

type fixture struct {
	cam      *depthcam.Camera
	viewer   *viewer.Viewer
	fs       *fsutil.MemoryFileSystem
	sessions *fakeSessions
	dir      string
	mux      http.Handler
}

func newFixture(t *testing.T, features depthcam.FeatureSet) *fixture {
	t.Helper()
	testutil.QuietLogs(t)

	fs := fsutil.NewMemoryFileSystem()
	cfg := device.DefaultSyntheticConfig()
	cfg.FS = fs
	cfg.PreviewGrowAfter = 2
	cam := depthcam.New(device.NewSynthetic(cfg), depthcam.Config{})
	require.NoError(t, cam.EnableFeatures(features))
	require.NoError(t, cam.SetColorResolution(depthcam.Color320x180x30))
	require.NoError(t, cam.SetDepthResolution(depthcam.Depth320x240x30))
	t.Cleanup(func() { cam.Stop() })

	f := &fixture{
		cam:      cam,
		viewer:   viewer.New(cam, 30, nil),
		fs:       fs,
		sessions: &fakeSessions{},
		dir:      t.TempDir(),
	}
	srv := NewServer(context.Background(), cam, f.viewer, f.sessions, Config{
		OutputDir:     f.dir,
		DefaultFormat: device.FormatOBJ,
	})
	f.mux = LoggingMiddleware(srv.ServeMux())
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(f.mux, testutil.JSONRequest(method, target, body))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestStatusAndDevice(t *testing.T) {
	f := newFixture(t, depthcam.FeatureStreaming)

	rec := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[statusResponse](t, rec)
	assert.False(t, st.Running)
	assert.Equal(t, "SR300", st.Model)
	assert.Equal(t, "streaming", st.Features)
	assert.NotEmpty(t, st.Version)

	rec = f.do(t, http.MethodGet, "/api/device", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dev := decode[deviceResponse](t, rec)
	assert.Equal(t, "Synthetic SR300", dev.Name)
	assert.Equal(t, "3.10.10.0", dev.Firmware)
	assert.Equal(t, float32(68), dev.ColorFOV.Horizontal)

	rec = f.do(t, http.MethodPost, "/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCameraStartStopAndFrames(t *testing.T) {
	f := newFixture(t, depthcam.FeatureStreaming)

	rec := f.do(t, http.MethodGet, "/api/frame/color.png", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no frame before start")

	rec = f.do(t, http.MethodPost, "/api/camera/start", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[depthcam.Status](t, rec).Running)

	require.Eventually(t, f.viewer.Tick, waitFor, 10*time.Millisecond)

	for _, tt := range []struct {
		path          string
		width, height int
	}{
		{"/api/frame/color.png", 320, 180},
		{"/api/frame/depth.png", 320, 240},
	} {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get("X-Frame-Sequence"))
			img, err := png.Decode(rec.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.width, img.Bounds().Dx())
			assert.Equal(t, tt.height, img.Bounds().Dy())
		})
	}

	rec = f.do(t, http.MethodGet, "/api/frame/preview.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "no preview without scanning")

	rec = f.do(t, http.MethodGet, "/api/frame/thermal.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/camera/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[depthcam.Status](t, rec).Running)
}

func TestScanWithoutScanner(t *testing.T) {
	f := newFixture(t, depthcam.FeatureStreaming)

	for _, path := range []string{"/api/scan/start", "/api/scan/stop", "/api/scan/save"} {
		rec := f.do(t, http.MethodPost, path, "")
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}
}

func TestScanSaveFlow(t *testing.T) {
	f := newFixture(t, depthcam.FeatureStreaming|depthcam.FeatureScan3D)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/camera/start", "").Code)
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/scan/start", "").Code)
	require.Eventually(t, func() bool {
		return f.cam.Status().ScanState == "scanning"
	}, waitFor, 10*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/scan/save", `{"format":"obj","filename":"cup.obj"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[saveResponse](t, rec)
	want := filepath.Join(f.dir, "cup.obj")
	assert.Equal(t, want, resp.Filename)
	assert.Equal(t, "obj", resp.Format)

	require.Eventually(t, f.cam.ScanCompleted, waitFor, 10*time.Millisecond)
	assert.True(t, f.fs.Exists(want))

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/scan/stop", "").Code)
}

func TestScanSaveRejectsBadInput(t *testing.T) {
	f := newFixture(t, depthcam.FeatureScan3D)

	tests := []struct {
		name string
		body string
	}{
		{"unknown format", `{"format":"fbx"}`},
		{"traversal", `{"filename":"../../../etc/evil.obj"}`},
		{"unknown field", `{"path":"x.obj"}`},
		{"malformed", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/scan/save", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestListSessions(t *testing.T) {
	f := newFixture(t, depthcam.FeatureStreaming)

	rec := f.do(t, http.MethodGet, "/api/scan/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, 100, f.sessions.limit)

	f.sessions.sessions = []db.ScanSession{{SessionID: "s1", RunID: "r1", Status: db.ScanSaved}}
	rec = f.do(t, http.MethodGet, "/api/scan/sessions?run_id=r1&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]db.ScanSession](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, "r1", f.sessions.runID)
	assert.Equal(t, 5, f.sessions.limit)

	rec = f.do(t, http.MethodGet, "/api/scan/sessions?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessions_NoDatabase(t *testing.T) {
	testutil.QuietLogs(t)
	cam := depthcam.New(nil, depthcam.Config{})
	srv := NewServer(context.Background(), cam, viewer.New(cam, 0, nil), nil, Config{})

	rec := testutil.Serve(srv.ServeMux(), testutil.JSONRequest(http.MethodGet, "/api/scan/sessions", ""))
	testutil.AssertStatusCode(t, rec, http.StatusNotFound)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
