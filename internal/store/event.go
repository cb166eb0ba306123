package store

import (
	"database/sql"
	"time"
)

// EventRecord is a persisted edit event.
type EventRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository stores the edit events of sessions.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Append inserts e and sets its ID. A zero CreatedAt is set to now.
func (r *EventRepository) Append(e *EventRecord) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO session_events (session_id, kind, value, text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.Value, e.Text, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListBySession returns a session's events in the order they fired.
func (r *EventRepository) ListBySession(sessionID string) ([]*EventRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, value, text, created_at
		 FROM session_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		e := &EventRecord{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Value, &e.Text, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
