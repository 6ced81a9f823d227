package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/target.range/internal/events"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one recorded engagement run.
type Session struct {
	ID         string    `json:"session_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	EventCount int       `json:"event_count"`
}

// CreateSession starts a new session and returns it.
func (db *DB) CreateSession(name string) (Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, name, created_at) VALUES (?, ?, ?)`,
		s.ID, s.Name, float64(s.CreatedAt.UnixNano())/1e9,
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// Session returns a session by id.
func (db *DB) Session(id string) (Session, error) {
	var (
		s       Session
		created float64
	)
	err := db.QueryRow(`
		SELECT s.session_id, s.name, s.created_at,
			(SELECT COUNT(*) FROM events e WHERE e.session_id = s.session_id)
		FROM sessions s WHERE s.session_id = ?`, id,
	).Scan(&s.ID, &s.Name, &created, &s.EventCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	s.CreatedAt = unixToTime(created)
	return s, nil
}

// Sessions lists every session, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`
		SELECT s.session_id, s.name, s.created_at,
			(SELECT COUNT(*) FROM events e WHERE e.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s       Session
			created float64
		)
		if err := rows.Scan(&s.ID, &s.Name, &created, &s.EventCount); err != nil {
			return nil, err
		}
		s.CreatedAt = unixToTime(created)
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordEvent appends e to a session's log.
func (db *DB) RecordEvent(sessionID string, e events.Event) error {
	var fields sql.NullString
	if len(e.Fields) > 0 {
		b, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode event fields: %w", err)
		}
		fields = sql.NullString{String: string(b), Valid: true}
	}

	_, err := db.Exec(
		`INSERT INTO events (session_id, t, kind, track_id, x1, y1, x2, y2, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, e.T, e.Kind, e.TrackID,
		e.Box.X1, e.Box.Y1, e.Box.X2, e.Box.Y2, fields,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", e.Kind, err)
	}
	return nil
}

// Events returns a session's log in time order. kind filters by event
// kind when non-empty.
func (db *DB) Events(sessionID, kind string) ([]events.Event, error) {
	query := `SELECT t, kind, track_id, x1, y1, x2, y2, fields
		FROM events WHERE session_id = ?`
	args := []any{sessionID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY t, event_id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e      events.Event
			fields sql.NullString
		)
		if err := rows.Scan(&e.T, &e.Kind, &e.TrackID,
			&e.Box.X1, &e.Box.Y1, &e.Box.X2, &e.Box.Y2, &fields); err != nil {
			return nil, err
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to decode event fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its events.
func (db *DB) DeleteSession(id string) error {
	res, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SessionRecorder writes events into one session.
type SessionRecorder struct {
	DB        *DB
	SessionID string
}

// Record implements events.Recorder.
func (r SessionRecorder) Record(e events.Event) error {
	return r.DB.RecordEvent(r.SessionID, e)
}

func unixToTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*1e9)).UTC()
}
