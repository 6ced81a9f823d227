// Package api serves the range toolkit over HTTP: live tracks from a
// running pipeline, recorded sessions and their scores, and charts.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/target.range/internal/db"
	"github.com/banshee-data/target.range/internal/engagement"
	"github.com/banshee-data/target.range/internal/events"
	"github.com/banshee-data/target.range/internal/httputil"
	"github.com/banshee-data/target.range/internal/monitor"
	"github.com/banshee-data/target.range/internal/monitoring"
	"github.com/banshee-data/target.range/internal/scoring"
	"github.com/banshee-data/target.range/internal/tracking"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Trail plots are rendered at 96 dpi.
const (
	defaultPlotWidth  = 960
	defaultPlotHeight = 540
	maxPlotSide       = 4096
	plotDPI           = 96
)

// LiveView is the read side of a running pipeline.
type LiveView interface {
	Tracks() []tracking.Snapshot
	Summary() engagement.Summary
}

// Options configures a Server. Every field is optional; endpoints whose
// backing component is missing answer 503.
type Options struct {
	DB            *db.DB
	Live          LiveView
	Monitor       *monitor.Recorder
	StageDuration float64 // seconds; zero uses scoring.DefaultDuration
}

type Server struct {
	db       *db.DB
	live     LiveView
	monitor  *monitor.Recorder
	duration float64
}

func NewServer(opts Options) *Server {
	if opts.StageDuration <= 0 {
		opts.StageDuration = scoring.DefaultDuration
	}
	return &Server{
		db:       opts.DB,
		live:     opts.Live,
		monitor:  opts.Monitor,
		duration: opts.StageDuration,
	}
}

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
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. When a database is configured the
// tsweb debug pages and the SQL console are mounted under /debug/.
func (s *Server) ServeMux() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tracks", s.listTracks)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}", s.handleSession)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/score", s.showScore)
	mux.HandleFunc("/api/charts/tracks", s.tracksChart)
	mux.HandleFunc("/api/charts/trails.png", s.trailsPlot)

	if s.db != nil {
		if err := s.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.live == nil {
		httputil.ServiceUnavailable(w, "no pipeline running")
		return
	}
	tracks := s.live.Tracks()
	if tracks == nil {
		tracks = []tracking.Snapshot{}
	}
	httputil.WriteJSONOK(w, tracks)
}

type summaryResponse struct {
	Pipeline *engagement.Summary `json:"pipeline,omitempty"`
	Monitor  *monitor.Stats      `json:"monitor,omitempty"`
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.live == nil && s.monitor == nil {
		httputil.ServiceUnavailable(w, "no pipeline running")
		return
	}

	var resp summaryResponse
	if s.live != nil {
		sum := s.live.Summary()
		resp.Pipeline = &sum
	}
	if s.monitor != nil {
		stats := s.monitor.Summary()
		resp.Monitor = &stats
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}

	sessions, err := s.db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		sess, err := s.db.Session(id)
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, "session not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve session: %v", err))
			return
		}
		httputil.WriteJSONOK(w, sess)
	case http.MethodDelete:
		err := s.db.DeleteSession(id)
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, "session not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to delete session: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, HEAD, DELETE")
		httputil.MethodNotAllowed(w)
	}
}

// sessionEvents loads the log of the session named by the "session"
// query parameter. It writes the error response itself and returns
// ok=false on failure.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request, kind string) ([]events.Event, bool) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return nil, false
	}
	id := r.URL.Query().Get("session")
	if id == "" {
		httputil.BadRequest(w, "missing 'session' parameter")
		return nil, false
	}
	if _, err := s.db.Session(id); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, "session not found")
		} else {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve session: %v", err))
		}
		return nil, false
	}

	evs, err := s.db.Events(id, kind)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve events: %v", err))
		return nil, false
	}
	if evs == nil {
		evs = []events.Event{}
	}
	return evs, true
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	evs, ok := s.sessionEvents(w, r, r.URL.Query().Get("kind"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, evs)
}

func (s *Server) showScore(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}

	stage, err := httputil.QueryInt(r, "stage", 1)
	if err != nil {
		httputil.BadRequest(w, "Invalid 'stage' parameter")
		return
	}
	duration, err := httputil.QueryFloat(r, "duration", s.duration)
	if err != nil || duration <= 0 {
		httputil.BadRequest(w, "Invalid 'duration' parameter")
		return
	}

	evs, ok := s.sessionEvents(w, r, "")
	if !ok {
		return
	}

	res, err := scoring.ComputeStage(stage, evs, duration)
	if errors.Is(err, scoring.ErrInvalidStage) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) tracksChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.monitor == nil {
		httputil.ServiceUnavailable(w, "no monitor configured")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.monitor.RenderCountsChart(w, "Live tracks"); err != nil {
		monitoring.Logf("failed to render tracks chart: %v", err)
	}
}

func (s *Server) trailsPlot(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.monitor == nil {
		httputil.ServiceUnavailable(w, "no monitor configured")
		return
	}

	width, err := httputil.QueryInt(r, "width", defaultPlotWidth)
	if err != nil || width < 1 || width > maxPlotSide {
		httputil.BadRequest(w, "Invalid 'width' parameter")
		return
	}
	height, err := httputil.QueryInt(r, "height", defaultPlotHeight)
	if err != nil || height < 1 || height > maxPlotSide {
		httputil.BadRequest(w, "Invalid 'height' parameter")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := s.monitor.RenderTrailsPNG(w, pixels(width), pixels(height)); err != nil {
		monitoring.Logf("failed to render trails plot: %v", err)
	}
}

// pixels converts a pixel count to a plot length at plotDPI.
func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / plotDPI
}
