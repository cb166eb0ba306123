package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

// DefaultSessionLimit caps GET /api/sessions without a limit parameter.
const DefaultSessionLimit = 50

// SessionHandler handles HTTP requests for session resources.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions and /api/sessions/{id}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID        string `json:"id"`
	VoiceID   string `json:"voice_id"`
	VoiceName string `json:"voice_name"`
	Text      string `json:"text"`
	AudioPath string `json:"audio_path,omitempty"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

type eventResponse struct {
	Kind      string `json:"kind"`
	Value     string `json:"value,omitempty"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type sessionDetailResponse struct {
	sessionResponse
	Events []eventResponse `json:"events"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		VoiceID:   s.VoiceID,
		VoiceName: s.VoiceName,
		Text:      s.Text,
		AudioPath: s.AudioPath,
		StartedAt: s.StartedAt.Format(time.RFC3339),
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// list handles GET /api/sessions?limit=N.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id} and includes the session's events.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := sessionDetailResponse{
		sessionResponse: toSessionResponse(sess),
		Events:          make([]eventResponse, 0, len(events)),
	}
	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			Kind:      e.Kind,
			Value:     e.Value,
			Text:      e.Text,
			CreatedAt: e.CreatedAt.Format(time.RFC3339Nano),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
