package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamPoll is how often the stream checks for a new frame.
const streamPoll = 33 * time.Millisecond

// StreamHandler serves the rendered frames as MJPEG.
type StreamHandler struct {
	frames FrameSource
}

// NewStreamHandler creates a new StreamHandler over frames.
func NewStreamHandler(frames FrameSource) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames to connected clients. Each frame is sent
// once, as soon as it is seen.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamPoll)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpeg, seq := h.frames.LatestJPEG()
		if len(jpeg) == 0 || seq == lastSeq {
			continue
		}
		lastSeq = seq

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
