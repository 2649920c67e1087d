// Package api serves the HTTP JSON control surface and frame images.
package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/depthscan/internal/db"
	"github.com/banshee-data/depthscan/internal/depthcam"
	"github.com/banshee-data/depthscan/internal/depthcam/device"
	"github.com/banshee-data/depthscan/internal/depthcam/scan"
	"github.com/banshee-data/depthscan/internal/depthcam/viewer"
	"github.com/banshee-data/depthscan/internal/httputil"
	"github.com/banshee-data/depthscan/internal/security"
	"github.com/banshee-data/depthscan/internal/version"
)

// Camera is the part of depthcam.Camera the API drives.
type Camera interface {
	Status() depthcam.Status
	Info() device.Info
	GetCameraModel() depthcam.CameraModel
	CameraFirmware() string
	ColorFieldOfView() device.FieldOfView
	DepthFieldOfView() device.FieldOfView
	Start(ctx context.Context) error
	Stop() error
	StartScanning() error
	StopScanning() error
	SaveScan(format device.FileFormat, filename string) error
}

// Frames supplies the most recent published frame.
type Frames interface {
	Latest() *viewer.Snapshot
}

// Sessions lists recorded scan sessions.
type Sessions interface {
	List(runID string, limit int) ([]db.ScanSession, error)
}

// Config configures a Server.
type Config struct {
	OutputDir     string
	DefaultFormat device.FileFormat
}

type Server struct {
	cam      Camera
	frames   Frames
	sessions Sessions
	cfg      Config

	// runCtx bounds camera runs started over HTTP; a request context would
	// end the run when the response is written.
	runCtx context.Context
}

// NewServer returns a Server. sessions may be nil when no database is
// configured.
func NewServer(runCtx context.Context, cam Camera, frames Frames, sessions Sessions, cfg Config) *Server {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return &Server{cam: cam, frames: frames, sessions: sessions, cfg: cfg, runCtx: runCtx}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/device", s.showDevice)
	mux.HandleFunc("/api/camera/start", s.startCamera)
	mux.HandleFunc("/api/camera/stop", s.stopCamera)
	mux.HandleFunc("/api/scan/start", s.startScanning)
	mux.HandleFunc("/api/scan/stop", s.stopScanning)
	mux.HandleFunc("/api/scan/save", s.saveScan)
	mux.HandleFunc("/api/scan/sessions", s.listSessions)
	mux.HandleFunc("/api/frame/", s.showFrame)
	return mux
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		httputil.MethodNotAllowed(w)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, depthcam.ErrRunning), errors.Is(err, depthcam.ErrNoScanner):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, scan.ErrNoFilename), errors.Is(err, security.ErrPathEscape):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, depthcam.ErrInitFailed):
		httputil.ServiceUnavailable(w, err.Error())
	case errors.Is(err, depthcam.ErrStopTimeout):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

type statusResponse struct {
	depthcam.Status
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`
	Build   string `json:"build"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, statusResponse{
		Status:  s.cam.Status(),
		Version: version.Version,
		GitSHA:  version.GitSHA,
		Build:   version.String(),
	})
}

type fovResponse struct {
	Horizontal float32 `json:"horizontal"`
	Vertical   float32 `json:"vertical"`
}

type deviceResponse struct {
	Name     string      `json:"name"`
	Serial   string      `json:"serial"`
	Model    string      `json:"model"`
	Firmware string      `json:"firmware"`
	ColorFOV fovResponse `json:"color_fov"`
	DepthFOV fovResponse `json:"depth_fov"`
}

func (s *Server) showDevice(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	info := s.cam.Info()
	cfov, dfov := s.cam.ColorFieldOfView(), s.cam.DepthFieldOfView()
	httputil.WriteJSONOK(w, deviceResponse{
		Name:     info.Name,
		Serial:   info.Serial,
		Model:    s.cam.GetCameraModel().String(),
		Firmware: s.cam.CameraFirmware(),
		ColorFOV: fovResponse{cfov.Horizontal, cfov.Vertical},
		DepthFOV: fovResponse{dfov.Horizontal, dfov.Vertical},
	})
}

func (s *Server) startCamera(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := s.cam.Start(s.runCtx); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.cam.Status())
}

func (s *Server) stopCamera(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := s.cam.Stop(); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.cam.Status())
}

func (s *Server) startScanning(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := s.cam.StartScanning(); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "start requested"})
}

func (s *Server) stopScanning(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := s.cam.StopScanning(); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "stop requested"})
}

type saveRequest struct {
	Format   string `json:"format"`
	Filename string `json:"filename"`
}

type saveResponse struct {
	Format   string `json:"format"`
	Filename string `json:"filename"`
}

func (s *Server) saveScan(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req saveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	format := s.cfg.DefaultFormat
	if req.Format != "" {
		f, err := device.ParseFileFormat(req.Format)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		format = f
	}

	path, err := security.ResolveScanPath(s.cfg.OutputDir, req.Filename, s.cam.Status().SessionID, format.String())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.cam.SaveScan(format, path); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, saveResponse{Format: format.String(), Filename: path})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if s.sessions == nil {
		httputil.NotFound(w, "no session database configured")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessions, err := s.sessions.List(r.URL.Query().Get("run_id"), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []db.ScanSession{}
	}
	httputil.WriteJSONOK(w, sessions)
}

var frameImages = map[string]func(*viewer.Snapshot) image.Image{
	"color.png": func(s *viewer.Snapshot) image.Image {
		if img := s.ColorImage(); img != nil {
			return img
		}
		return nil
	},
	"depth.png": func(s *viewer.Snapshot) image.Image {
		if img := s.DepthImage(); img != nil {
			return img
		}
		return nil
	},
	"preview.png": func(s *viewer.Snapshot) image.Image {
		if img := s.PreviewImage(); img != nil {
			return img
		}
		return nil
	},
}

func isFramePath(path string) bool {
	return strings.HasPrefix(path, "/api/frame/")
}

func (s *Server) showFrame(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/frame/")
	render, ok := frameImages[name]
	if !ok {
		httputil.NotFound(w, "unknown frame image "+name)
		return
	}
	snap := s.frames.Latest()
	if snap == nil {
		httputil.ServiceUnavailable(w, "no frame yet")
		return
	}
	img := render(snap)
	if img == nil {
		httputil.NotFound(w, strings.TrimSuffix(name, ".png")+" stream has no data")
		return
	}
	var buf bytes.Buffer
	if err := viewer.EncodePNG(&buf, img); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("X-Frame-Sequence", strconv.FormatUint(snap.Sequence, 10))
	httputil.WriteImage(w, "image/png", buf.Bytes())
}
