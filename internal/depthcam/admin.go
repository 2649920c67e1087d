package depthcam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts camera debug pages under /debug/ on mux. These
// routes are meant for localhost or tailnet access only.
func (c *Camera) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Camera model", func() any { return c.GetCameraModel().String() })
	debug.KVFunc("Camera firmware", func() any { return c.CameraFirmware() })
	debug.KVFunc("Camera running", func() any { return c.Running() })
	debug.KVFunc("Camera features", func() any { return c.Features().String() })
	debug.KVFunc("Scan state", func() any { return c.session.State().String() })

	debug.HandleFunc("frame-intervals", "chart of recent frame-to-frame intervals", c.handleFrameIntervalChart)

	// Server-sent events for every camera and scan event.
	debug.HandleSilentFunc("camera-events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, events := c.Subscribe()
		defer c.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}

func (c *Camera) handleFrameIntervalChart(w http.ResponseWriter, r *http.Request) {
	st := c.Stats()

	xs := make([]int, len(st.Intervals))
	data := make([]opts.LineData, len(st.Intervals))
	for i, d := range st.Intervals {
		xs[i] = i
		data[i] = opts.LineData{Value: float64(d.Microseconds()) / 1000}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Frame intervals", Theme: "dark", Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Frame intervals",
			Subtitle: fmt.Sprintf("frames=%d skipped=%d mean=%.1f fps", st.Frames, st.Skipped, st.MeanFPS()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(xs).AddSeries("interval", data)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
