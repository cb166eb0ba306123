package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one typing session from start to speech output.
type Session struct {
	ID        string     `json:"id"`
	VoiceID   string     `json:"voice_id"`
	VoiceName string     `json:"voice_name"`
	Text      string     `json:"text"`
	AudioPath string     `json:"audio_path"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Finished reports whether the session has ended.
func (s *Session) Finished() bool {
	return s.EndedAt != nil
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is filled with a new UUID and a
// zero StartedAt with the current time.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, voice_id, voice_name, text, audio_path, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.VoiceID, sess.VoiceName, sess.Text, sess.AudioPath, sess.StartedAt,
	)
	return err
}

// Finish records the final text and audio path and marks the session ended.
func (r *SessionRepository) Finish(id, text, audioPath string) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET text = ?, audio_path = ?, ended_at = ? WHERE id = ?`,
		text, audioPath, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return affected(result)
}

const sessionColumns = `id, voice_id, voice_name, text, audio_path, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime

	if err := row.Scan(&sess.ID, &sess.VoiceID, &sess.VoiceName, &sess.Text,
		&sess.AudioPath, &sess.StartedAt, &ended); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns sessions, newest first. A limit of zero or less returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session and its events.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}
