package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{VoiceID: "v1", VoiceName: "Rachel"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Errorf("ID %q should be a UUID: %v", sess.ID, err)
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt should be set after create")
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.VoiceName != "Rachel" || got.VoiceID != "v1" {
		t.Errorf("got %+v", got)
	}
	if got.Finished() {
		t.Error("new session should not be finished")
	}
}

func TestSessionRepository_Finish(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if err := repo.Finish(sess.ID, "HELLO WORLD", "output.mp3"); err != nil {
		t.Fatalf("failed to finish session: %v", err)
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.Text != "HELLO WORLD" || got.AudioPath != "output.mp3" {
		t.Errorf("got text %q audio %q", got.Text, got.AudioPath)
	}
	if !got.Finished() {
		t.Error("session should be finished")
	}
}

func TestSessionRepository_Finish_NotFound(t *testing.T) {
	s := newTestStore(t)

	if err := s.Sessions().Finish("missing", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Sessions().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		sess := &Session{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(sess); err != nil {
			t.Fatalf("failed to create session %s: %v", id, err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("sessions should be newest first, got %s..%s", all[0].ID, all[2].ID)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 sessions with limit, got %d", len(limited))
	}
}

func TestSessionRepository_Delete_CascadesEvents(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := s.Events().Append(&EventRecord{SessionID: sess.ID, Kind: "append_char", Value: "A", Text: "A"}); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	if err := s.Sessions().Delete(sess.ID); err != nil {
		t.Fatalf("failed to delete session: %v", err)
	}

	events, err := s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events should be deleted with their session, got %d", len(events))
	}

	if err := s.Sessions().Delete(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}
