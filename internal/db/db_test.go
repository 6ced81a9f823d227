package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/target.range/internal/events"
	"github.com/banshee-data/target.range/internal/tracking"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "range.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(MigrationsFS()))
	version, _, err = db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp(MigrationsFS()))

	require.NoError(t, db.MigrateDown(MigrationsFS()))
	version, _, err = db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='events'`).Scan(&n))
	assert.Zero(t, n, "events table should be dropped")
}

func TestSessionsAndEvents(t *testing.T) {
	db := newTestDB(t)

	before := time.Now()
	s, err := db.CreateSession("stage 1 dry run")
	require.NoError(t, err)
	assert.Len(t, s.ID, 36)

	rec := SessionRecorder{DB: db, SessionID: s.ID}
	in := []events.Event{
		{T: 0.5, Kind: events.KindTrack, TrackID: 1, Box: tracking.Box{X1: 1, Y1: 2, X2: 11, Y2: 12}},
		{T: 0.25, Kind: events.KindTrack, TrackID: 2, Box: tracking.Box{X1: 5, Y1: 5, X2: 9, Y2: 9}},
		{T: 1.0, Kind: events.KindFire, TrackID: 1, Fields: map[string]string{"color": "red"}},
	}
	for _, e := range in {
		require.NoError(t, rec.Record(e))
	}

	got, err := db.Events(s.ID, "")
	require.NoError(t, err)
	want := []events.Event{in[1], in[0], in[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}

	fires, err := db.Events(s.ID, events.KindFire)
	require.NoError(t, err)
	require.Len(t, fires, 1)
	assert.Equal(t, "red", fires[0].Fields["color"])

	loaded, err := db.Session(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.EventCount)
	assert.Equal(t, "stage 1 dry run", loaded.Name)
	assert.WithinDuration(t, before, loaded.CreatedAt, 5*time.Second)

	_, err = db.Session("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionsList(t *testing.T) {
	db := newTestDB(t)

	first, err := db.CreateSession("first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := db.CreateSession("second")
	require.NoError(t, err)
	require.NoError(t, db.RecordEvent(second.ID, events.Event{Kind: events.KindHit}))

	list, err := db.Sessions()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 1, list[0].EventCount)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, 0, list[1].EventCount)
}

func TestRecordEvent_UnknownSession(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordEvent("missing", events.Event{Kind: events.KindHit})
	assert.Error(t, err, "foreign key should reject events for unknown sessions")
}

func TestDeleteSession(t *testing.T) {
	db := newTestDB(t)

	s, err := db.CreateSession("tmp")
	require.NoError(t, err)
	require.NoError(t, db.RecordEvent(s.ID, events.Event{Kind: events.KindTrack}))

	require.NoError(t, db.DeleteSession(s.ID))
	assert.ErrorIs(t, db.DeleteSession(s.ID), ErrSessionNotFound)

	evs, err := db.Events(s.ID, "")
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	_, pattern := mux.Handler(req)
	assert.True(t, strings.HasPrefix(pattern, "/debug/"), "pattern %q", pattern)
}
