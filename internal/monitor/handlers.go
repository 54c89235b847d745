package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/httputil"
)

// AttachAdminRoutes registers the trace pages as /debug/trace-<source>.html,
// .png and .json, so traces fed by different detectors stay apart.
func (t *Trace) AttachAdminRoutes(mux *http.ServeMux, source string) {
	debug := tsweb.Debugger(mux)
	base := "trace-" + source
	debug.HandleFunc(base+".html", source+" classifier trace chart", t.handleTraceChart)
	debug.HandleSilentFunc(base+".png", t.handleTracePNG)
	debug.HandleSilentFunc(base+".json", t.handleTraceJSON)
}

// lastN returns at most n of the newest samples; n <= 0 means all.
func (t *Trace) lastN(r *http.Request) ([]Sample, error) {
	samples := t.Samples()
	v := r.URL.Query().Get("n")
	if v == "" {
		return samples, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid 'n' parameter %q", v)
	}
	if n > 0 && n < len(samples) {
		samples = samples[len(samples)-n:]
	}
	return samples, nil
}

func (t *Trace) handleTraceJSON(w http.ResponseWriter, r *http.Request) {
	samples, err := t.lastN(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, samples)
}

func (t *Trace) handleTracePNG(w http.ResponseWriter, r *http.Request) {
	samples, err := t.lastN(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := RenderPNG(samples, &buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (t *Trace) handleTraceChart(w http.ResponseWriter, r *http.Request) {
	samples, err := t.lastN(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	x := make([]string, len(samples))
	rectified := make([]opts.LineData, len(samples))
	mean := make([]opts.LineData, len(samples))
	upper := make([]opts.LineData, len(samples))
	fired := make([]opts.LineData, len(samples))
	var steps, jumps int
	for i, s := range samples {
		x[i] = strconv.FormatUint(s.Index, 10)
		rectified[i] = opts.LineData{Value: s.Rectified}
		if s.WarmingUp {
			mean[i] = opts.LineData{Value: "-"}
			upper[i] = opts.LineData{Value: "-"}
		} else {
			mean[i] = opts.LineData{Value: s.Mean}
			upper[i] = opts.LineData{Value: s.Upper}
		}
		fired[i] = opts.LineData{Value: int(s.Signal)}
		switch s.Signal {
		case detector.SignalStep:
			steps++
		case detector.SignalJump:
			jumps++
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Gyro trace", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Gyro trace", Subtitle: fmt.Sprintf("samples=%d steps=%d jumps=%d", len(samples), steps, jumps)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).
		AddSeries("rectified", rectified).
		AddSeries("mean", mean).
		AddSeries("band", upper).
		AddSeries("signal", fired)

	page := components.NewPage()
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
