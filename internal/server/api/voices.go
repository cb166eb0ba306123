package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/tts"
)

// VoiceHandler serves the voices offered for speech output.
type VoiceHandler struct {
	lister   tts.VoiceLister
	limit    int
	selected func() string
}

// NewVoiceHandler creates a VoiceHandler listing at most limit voices.
// selected, if not nil, reports the ID of the voice in use.
func NewVoiceHandler(lister tts.VoiceLister, limit int, selected func() string) *VoiceHandler {
	return &VoiceHandler{lister: lister, limit: limit, selected: selected}
}

type listVoicesResponse struct {
	Voices   []tts.Voice `json:"voices"`
	Selected string      `json:"selected,omitempty"`
}

// ServeHTTP handles GET /api/voices.
func (h *VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	voices, err := h.lister.ListVoices(ctx)
	if err != nil {
		log.Printf("list voices: %v", err)
		writeError(w, http.StatusBadGateway, "Failed to list voices")
		return
	}

	response := listVoicesResponse{
		Voices: tts.Top(voices, h.limit),
	}
	if response.Voices == nil {
		response.Voices = []tts.Voice{}
	}
	if h.selected != nil {
		response.Selected = h.selected()
	}

	writeJSON(w, http.StatusOK, response)
}
