package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/target.range/internal/classify"
	"github.com/banshee-data/target.range/internal/db"
	"github.com/banshee-data/target.range/internal/detection"
	"github.com/banshee-data/target.range/internal/engagement"
	"github.com/banshee-data/target.range/internal/events"
	"github.com/banshee-data/target.range/internal/monitor"
	"github.com/banshee-data/target.range/internal/scoring"
	"github.com/banshee-data/target.range/internal/tracking"
)

func newMux(t *testing.T, opts Options) *http.ServeMux {
	t.Helper()
	mux, err := NewServer(opts).ServeMux()
	require.NoError(t, err)
	return mux
}

func do(mux http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// runPipeline replays a few frames of one stationary red balloon.
func runPipeline(t *testing.T, mon *monitor.Recorder) *engagement.Pipeline {
	t.Helper()
	p, err := engagement.New(engagement.Config{
		Tracker:       tracking.NewTracker(tracking.DefaultConfig()),
		Classifier:    engagement.FixedColor(classify.ColorRed),
		Monitor:       mon,
		MinStableHits: 1,
	})
	require.NoError(t, err)

	box := tracking.Box{X1: 100, Y1: 100, X2: 140, Y2: 150}
	for i := 0; i < 4; i++ {
		_, err := p.ProcessFrame(detection.Frame{Index: i, Time: float64(i), Boxes: []tracking.Box{box}})
		require.NoError(t, err)
	}
	return p
}

func seedSession(t *testing.T, d *db.DB) db.Session {
	t.Helper()
	s, err := d.CreateSession("stage one")
	require.NoError(t, err)
	for _, e := range []events.Event{
		{T: 10, Kind: events.KindHit, TrackID: 1, Fields: map[string]string{events.FieldType: "small"}},
		{T: 20, Kind: events.KindFire, TrackID: 2},
		{T: 50, Kind: events.KindHit, TrackID: 2, Fields: map[string]string{events.FieldType: "big"}},
	} {
		require.NoError(t, d.RecordEvent(s.ID, e))
	}
	return s
}

func TestTracks(t *testing.T) {
	t.Parallel()

	mux := newMux(t, Options{Live: runPipeline(t, nil)})
	rec := do(mux, http.MethodGet, "/api/tracks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var tracks []tracking.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tracks))
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].ID)
	assert.Equal(t, 3, tracks[0].StableHits)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	mon := monitor.NewRecorder(0)
	mux := newMux(t, Options{Live: runPipeline(t, mon), Monitor: mon})
	rec := do(mux, http.MethodGet, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp summaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Pipeline)
	require.NotNil(t, resp.Monitor)
	assert.Equal(t, 4, resp.Pipeline.Frames)
	assert.Equal(t, 1, resp.Pipeline.Fires)
	assert.Equal(t, 1, resp.Monitor.Tracks)
	assert.Equal(t, 1, resp.Monitor.Fires)
}

func TestUnconfiguredEndpoints(t *testing.T) {
	t.Parallel()

	mux := newMux(t, Options{})
	for _, target := range []string{
		"/api/tracks",
		"/api/summary",
		"/api/sessions",
		"/api/sessions/abc",
		"/api/events?session=abc",
		"/api/score?session=abc",
		"/api/charts/tracks",
		"/api/charts/trails.png",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusServiceUnavailable, do(mux, http.MethodGet, target).Code)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	mux := newMux(t, Options{DB: cloneAPITestDB(t), Live: runPipeline(t, nil)})
	for _, target := range []string{"/api/tracks", "/api/sessions", "/api/events", "/api/score"} {
		rec := do(mux, http.MethodPost, target)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
	assert.Equal(t, http.StatusMethodNotAllowed, do(mux, http.MethodPut, "/api/sessions/x").Code)
}

func TestSessions(t *testing.T) {
	t.Parallel()

	d := cloneAPITestDB(t)
	mux := newMux(t, Options{DB: d})

	rec := do(mux, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	s := seedSession(t, d)

	rec = do(mux, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []db.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, s.ID, list[0].ID)
	assert.Equal(t, 3, list[0].EventCount)

	rec = do(mux, http.MethodGet, "/api/sessions/"+s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"stage one"`)

	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/api/sessions/missing").Code)
	assert.Equal(t, http.StatusNoContent, do(mux, http.MethodDelete, "/api/sessions/"+s.ID).Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodDelete, "/api/sessions/"+s.ID).Code)
}

func TestEvents(t *testing.T) {
	t.Parallel()

	d := cloneAPITestDB(t)
	s := seedSession(t, d)
	mux := newMux(t, Options{DB: d})

	rec := do(mux, http.MethodGet, "/api/events?session="+s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var evs []events.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&evs))
	require.Len(t, evs, 3)
	assert.Equal(t, events.KindFire, evs[1].Kind)

	rec = do(mux, http.MethodGet, "/api/events?kind=hit&session="+s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	evs = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&evs))
	assert.Len(t, evs, 2)

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/api/events").Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/api/events?session=nope").Code)
}

func TestScore(t *testing.T) {
	t.Parallel()

	d := cloneAPITestDB(t)
	s := seedSession(t, d)
	mux := newMux(t, Options{DB: d, StageDuration: 200})

	tests := []struct {
		name   string
		query  string
		status int
		want   scoring.Result
	}{
		{
			name:   "stage one with explicit duration",
			query:  "stage=1&duration=100",
			status: http.StatusOK,
			want:   scoring.Result{Stage: 1, Base: 20, BSP: 10, Total: 30, Hits: 2},
		},
		{
			name:   "server default duration",
			query:  "stage=1",
			status: http.StatusOK,
			want:   scoring.Result{Stage: 1, Base: 20, BSP: 15, Total: 35, Hits: 2},
		},
		{name: "invalid stage", query: "stage=4", status: http.StatusBadRequest},
		{name: "non-numeric stage", query: "stage=one", status: http.StatusBadRequest},
		{name: "bad duration", query: "stage=1&duration=-5", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodGet, "/api/score?session="+s.ID+"&"+tt.query)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var got scoring.Result
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCharts(t *testing.T) {
	t.Parallel()

	mon := monitor.NewRecorder(0)
	runPipeline(t, mon)
	mux := newMux(t, Options{Monitor: mon})

	rec := do(mux, http.MethodGet, "/api/charts/tracks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "live tracks")

	rec = do(mux, http.MethodGet, "/api/charts/trails.png?width=320&height=240")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/api/charts/trails.png?width=0").Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/api/charts/trails.png?height=99999").Code)
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := do(h, http.MethodGet, "/x")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStatusCodeColor(t *testing.T) {
	t.Parallel()

	assert.Contains(t, statusCodeColor(200), colorBoldGreen)
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Contains(t, statusCodeColor(503), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
