package depthcam

// Status is a point-in-time summary of the camera for API and RPC callers.
type Status struct {
	Running   bool   `json:"running"`
	RunID     string `json:"run_id,omitempty"`
	HasDevice bool   `json:"has_device"`
	Model     string `json:"model"`
	Firmware  string `json:"firmware"`
	Features  string `json:"features"`

	ColorResolution string `json:"color_resolution"`
	DepthResolution string `json:"depth_resolution"`
	ColorEnabled    bool   `json:"color_enabled"`
	DepthEnabled    bool   `json:"depth_enabled"`
	ScanEnabled     bool   `json:"scan_enabled"`

	Frames  uint64  `json:"frames"`
	Skipped uint64  `json:"skipped"`
	MeanFPS float64 `json:"mean_fps"`

	ScanState     string `json:"scan_state"`
	SessionID     string `json:"session_id,omitempty"`
	ScanCompleted bool   `json:"scan_completed"`
	PreviewWidth  int    `json:"preview_width"`
	PreviewHeight int    `json:"preview_height"`
	ScanError     string `json:"scan_error,omitempty"`

	Error string `json:"error,omitempty"`
}

// Status collects the current camera state.
func (c *Camera) Status() Status {
	color, depth := c.Resolutions()
	colorOn, depthOn, scanOn := c.Enabled()
	st := c.Stats()
	preview := c.session.PreviewResolution()

	s := Status{
		Running:         c.Running(),
		RunID:           c.RunID(),
		HasDevice:       c.hasDevice,
		Model:           c.GetCameraModel().String(),
		Firmware:        c.CameraFirmware(),
		Features:        c.Features().String(),
		ColorResolution: color.String(),
		DepthResolution: depth.String(),
		ColorEnabled:    colorOn,
		DepthEnabled:    depthOn,
		ScanEnabled:     scanOn,
		Frames:          st.Frames,
		Skipped:         st.Skipped,
		MeanFPS:         st.MeanFPS(),
		ScanState:       c.session.State().String(),
		SessionID:       c.session.SessionID(),
		ScanCompleted:   c.session.Completed(),
		PreviewWidth:    preview.Width,
		PreviewHeight:   preview.Height,
	}
	if err := c.session.LastError(); err != nil {
		s.ScanError = err.Error()
	}
	if err := c.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
