package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/imu.tracker/internal/tracker"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the tracker against a sample source.
type Session struct {
	SessionID   string  `json:"session_id"`
	Source      string  `json:"source"`
	Alpha       float64 `json:"alpha"`
	StartedAtNs int64   `json:"started_at_ns"`
	Estimates   int     `json:"estimates"`
}

// StartedAt returns the session start time.
func (s Session) StartedAt() time.Time {
	return time.Unix(0, s.StartedAtNs)
}

// StartSession records a new session and returns a recorder bound to it.
func (db *DB) StartSession(source string, alpha float64) (*SessionRecorder, error) {
	s := Session{
		SessionID:   uuid.New().String(),
		Source:      source,
		Alpha:       alpha,
		StartedAtNs: time.Now().UnixNano(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, source, alpha, started_at_ns) VALUES (?, ?, ?, ?)`,
		s.SessionID, s.Source, s.Alpha, s.StartedAtNs,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &SessionRecorder{db: db, session: s}, nil
}

// GetSession retrieves a session by id.
func (db *DB) GetSession(id string) (*Session, error) {
	var s Session
	err := db.QueryRow(`
		SELECT s.session_id, s.source, s.alpha, s.started_at_ns,
		       (SELECT COUNT(*) FROM estimates e WHERE e.session_id = s.session_id)
		FROM sessions s
		WHERE s.session_id = ?`, id,
	).Scan(&s.SessionID, &s.Source, &s.Alpha, &s.StartedAtNs, &s.Estimates)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// ListSessions returns up to limit sessions, newest first.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT s.session_id, s.source, s.alpha, s.started_at_ns,
		       (SELECT COUNT(*) FROM estimates e WHERE e.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.started_at_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionID, &s.Source, &s.Alpha, &s.StartedAtNs, &s.Estimates); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionRecording returns the gyro and accelerometer values a session fed its
// filters, interleaved six per estimate in tick order, ready for playback.
func (db *DB) SessionRecording(id string) ([]float64, error) {
	if _, err := db.GetSession(id); err != nil {
		return nil, err
	}
	rows, err := db.Query(`
		SELECT gyr_x, gyr_y, gyr_z, acc_x, acc_y, acc_z
		FROM estimates
		WHERE session_id = ?
		ORDER BY tick`, id)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	var data []float64
	for rows.Next() {
		var v [6]float64
		if err := rows.Scan(&v[0], &v[1], &v[2], &v[3], &v[4], &v[5]); err != nil {
			return nil, err
		}
		data = append(data, v[:]...)
	}
	return data, rows.Err()
}

// SessionRecorder writes tracker output for one session. It implements
// tracker.Recorder.
type SessionRecorder struct {
	db      *DB
	session Session
}

var _ tracker.Recorder = (*SessionRecorder)(nil)

// Session returns the session being recorded.
func (r *SessionRecorder) Session() Session {
	return r.session
}

// RecordSnapshot stores one estimate row.
func (r *SessionRecorder) RecordSnapshot(s tracker.Snapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO estimates (
			session_id, tick, dt,
			gyr_x, gyr_y, gyr_z, acc_x, acc_y, acc_z,
			flatland_roll_gyr, flatland_roll_acc, flatland_roll_comp,
			acc_pitch, acc_roll,
			qgyr_w, qgyr_x, qgyr_y, qgyr_z,
			qcomp_w, qcomp_x, qcomp_y, qcomp_z,
			recorded_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.session.SessionID, s.Tick, s.DeltaT,
		s.Gyr.X, s.Gyr.Y, s.Gyr.Z, s.Acc.X, s.Acc.Y, s.Acc.Z,
		s.FlatlandRollGyr, s.FlatlandRollAcc, s.FlatlandRollComp,
		s.AccPitch, s.AccRoll,
		s.QuaternionGyr.W, s.QuaternionGyr.X, s.QuaternionGyr.Y, s.QuaternionGyr.Z,
		s.QuaternionComp.W, s.QuaternionComp.X, s.QuaternionComp.Y, s.QuaternionComp.Z,
		s.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert estimate %d: %w", s.Tick, err)
	}
	return nil
}

// RecordCalibration stores a calibration result against the session.
func (r *SessionRecorder) RecordCalibration(c tracker.Calibration) error {
	created := c.Time
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.Exec(`
		INSERT INTO calibrations (
			session_id, samples,
			gyr_bias_x, gyr_bias_y, gyr_bias_z,
			gyr_var_x, gyr_var_y, gyr_var_z,
			acc_bias_x, acc_bias_y, acc_bias_z,
			acc_var_x, acc_var_y, acc_var_z,
			created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.session.SessionID, c.Samples,
		c.GyrBias.X, c.GyrBias.Y, c.GyrBias.Z,
		c.GyrVar.X, c.GyrVar.Y, c.GyrVar.Z,
		c.AccBias.X, c.AccBias.Y, c.AccBias.Z,
		c.AccVar.X, c.AccVar.Y, c.AccVar.Z,
		created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert calibration: %w", err)
	}
	return nil
}

// LatestCalibration returns the most recent calibration from any session.
// ok is false when none has been stored.
func (db *DB) LatestCalibration() (c tracker.Calibration, ok bool, err error) {
	var createdNs int64
	err = db.QueryRow(`
		SELECT samples,
		       gyr_bias_x, gyr_bias_y, gyr_bias_z,
		       gyr_var_x, gyr_var_y, gyr_var_z,
		       acc_bias_x, acc_bias_y, acc_bias_z,
		       acc_var_x, acc_var_y, acc_var_z,
		       created_at_ns
		FROM calibrations
		ORDER BY created_at_ns DESC, calibration_id DESC
		LIMIT 1`,
	).Scan(
		&c.Samples,
		&c.GyrBias.X, &c.GyrBias.Y, &c.GyrBias.Z,
		&c.GyrVar.X, &c.GyrVar.Y, &c.GyrVar.Z,
		&c.AccBias.X, &c.AccBias.Y, &c.AccBias.Z,
		&c.AccVar.X, &c.AccVar.Y, &c.AccVar.Z,
		&createdNs,
	)
	if err == sql.ErrNoRows {
		return tracker.Calibration{}, false, nil
	}
	if err != nil {
		return tracker.Calibration{}, false, fmt.Errorf("latest calibration: %w", err)
	}
	c.Time = time.Unix(0, createdNs)
	return c, true, nil
}
