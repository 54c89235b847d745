package api

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/monitor"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/notify"
	"github.com/banshee-data/motion.report/internal/pipeline"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/timeutil"
	"github.com/banshee-data/motion.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// SignalReply is the detect response when a step or jump fired.
type SignalReply struct {
	Signal    detector.Signal `json:"signal"`
	LatencyMs int64           `json:"response time (ms)"`
}

// ReceivedReply is the detect response when nothing fired. The field name
// is part of the device protocol and is spelled the way devices expect it.
type ReceivedReply struct {
	Received  json.Number `json:"recieved"`
	LatencyMs int64       `json:"response time (ms)"`
}

type Server struct {
	detector *detector.Locked
	db       *db.DB
	m        serialmux.SerialMuxInterface
	sink     notify.Sink
	trace    *monitor.Trace
	counter  *pipeline.Counter
	clock    timeutil.Clock
	sensing  *pipeline.Loop
}

// sensingState is the serial sensing loop as shown by /api/config.
type sensingState struct {
	Detector          detector.Config   `json:"detector"`
	State             detector.Snapshot `json:"state"`
	Calibrated        bool              `json:"calibrated"`
	Bias              float64           `json:"bias"`
	CalibrationSeen   int               `json:"calibration_seen"`
	CalibrationTarget int               `json:"calibration_target"`
	Counts            db.Counts         `json:"counts"`
}

func NewServer(d *detector.Locked, database *db.DB) *Server {
	return &Server{
		detector: d,
		db:       database,
		counter:  &pipeline.Counter{},
		clock:    timeutil.RealClock{},
	}
}

// SetSerialMux enables /api/command.
func (s *Server) SetSerialMux(m serialmux.SerialMuxInterface) { s.m = m }

// SetSink sets where fired signals are announced.
func (s *Server) SetSink(sink notify.Sink) { s.sink = sink }

// SetTrace records every detect decision into t.
func (s *Server) SetTrace(t *monitor.Trace) { s.trace = t }

// SetCounter replaces the step/jump counter, e.g. with one seeded from the
// event store.
func (s *Server) SetCounter(c *pipeline.Counter) { s.counter = c }

// SetSensingLoop adds the serial loop's detector and calibration to
// /api/config.
func (s *Server) SetSensingLoop(l *pipeline.Loop) { s.sensing = l }

// SetClock is used by tests to control latency.
func (s *Server) SetClock(c timeutil.Clock) { s.clock = c }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/detect", s.detect)
	mux.HandleFunc("/api/counts", s.showCounts)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/reset", s.resetDetector)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	return mux
}

// echoReading returns the number to echo back for a reading. The request
// text is kept verbatim when it is already a JSON number.
func echoReading(text string, v float64) json.Number {
	if json.Valid([]byte(text)) {
		return json.Number(text)
	}
	return json.Number(strconv.FormatFloat(v, 'f', -1, 64))
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	sensorText := strings.TrimSpace(q.Get("sensor"))
	tsText := strings.TrimSpace(q.Get("timestamp"))
	if sensorText == "" {
		monitoring.Logf("detect: no sensor reading")
		httputil.BadRequest(w, "missing 'sensor' parameter")
		return
	}
	if tsText == "" {
		monitoring.Logf("detect: no timestamp")
		httputil.BadRequest(w, "missing 'timestamp' parameter")
		return
	}

	reading, err := strconv.ParseFloat(sensorText, 64)
	if err != nil || math.IsNaN(reading) || math.IsInf(reading, 0) {
		monitoring.Logf("detect: invalid sensor reading %q", sensorText)
		httputil.BadRequest(w, "invalid 'sensor' parameter")
		return
	}
	producedAt, err := strconv.ParseInt(tsText, 10, 64)
	if err != nil {
		monitoring.Logf("detect: invalid timestamp %q", tsText)
		httputil.BadRequest(w, "invalid 'timestamp' parameter")
		return
	}

	dec := s.detector.Observe(reading)
	latency := s.clock.Now().UnixMilli() - producedAt
	s.trace.Record(dec, s.detector.Config().AnomalyMultiplier)

	if !dec.Signal.Fired() {
		httputil.WriteJSONOK(w, ReceivedReply{Received: echoReading(sensorText, reading), LatencyMs: latency})
		return
	}

	s.announce(r.Context(), dec, latency)
	httputil.WriteJSONOK(w, SignalReply{Signal: dec.Signal, LatencyMs: latency})
}

// announce counts, stores and broadcasts a fired decision. Failures are
// logged; the device still gets its reply.
func (s *Server) announce(ctx context.Context, dec detector.Decision, latencyMs int64) {
	now := s.clock.Now()
	steps, jumps := s.counter.Add(dec.Signal)

	if s.db != nil {
		_, err := s.db.RecordEvent(db.Event{
			Source:     db.SourceAPI,
			Signal:     dec.Signal,
			Reading:    dec.Reading,
			Mean:       dec.Baseline.Mean,
			StdDev:     dec.Baseline.StdDev,
			LatencyUs:  latencyMs * 1000,
			ProducedAt: now,
		})
		if err != nil {
			monitoring.Logf("detect: failed to record event: %v", err)
		}
	}

	if s.sink != nil {
		err := s.sink.Notify(ctx, notify.Status{
			Source:    db.SourceAPI,
			Signal:    dec.Signal,
			Steps:     steps,
			Jumps:     jumps,
			LatencyUs: latencyMs * 1000,
			At:        now,
		})
		if err != nil {
			monitoring.Logf("detect: notify failed: %v", err)
		}
	}
}

func (s *Server) showCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	source := r.URL.Query().Get("source")
	switch source {
	case "", db.SourceAPI, db.SourceSerial:
	default:
		httputil.BadRequest(w, "invalid 'source' parameter")
		return
	}

	if s.db == nil {
		storeUnavailable(w)
		return
	}
	counts, err := s.db.EventCounts(source)
	if err != nil {
		httputil.InternalServerError(w, "failed to retrieve counts: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, counts)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	if s.db == nil {
		storeUnavailable(w)
		return
	}
	events, err := s.db.RecentEvents(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to retrieve events: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, events)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	steps, jumps := s.counter.Snapshot()
	reply := map[string]interface{}{
		"detector": s.detector.Config(),
		"state":    s.detector.Snapshot(),
		"counts":   db.Counts{Steps: steps, Jumps: jumps},
		"board":    serialmux.CurrentState(),
	}
	if l := s.sensing; l != nil {
		cal := l.Calibrator()
		seen, target := cal.Progress()
		sSteps, sJumps := l.Counter().Snapshot()
		reply["sensing"] = sensingState{
			Detector:          l.Config(),
			State:             l.Snapshot(),
			Calibrated:        cal.Done(),
			Bias:              cal.Bias(),
			CalibrationSeen:   seen,
			CalibrationTarget: target,
			Counts:            db.Counts{Steps: sSteps, Jumps: sJumps},
		}
	}
	httputil.WriteJSONOK(w, reply)
}

func storeUnavailable(w http.ResponseWriter) {
	httputil.WriteJSONError(w, http.StatusServiceUnavailable, "event store not configured")
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) resetDetector(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.detector.Reset()
	monitoring.Logf("detector reset via API")
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.m == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "serial port not configured")
		return
	}

	command := r.FormValue("command")
	if command == "" {
		httputil.BadRequest(w, "missing 'command' parameter")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		httputil.InternalServerError(w, "failed to send command")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "sent"})
}
