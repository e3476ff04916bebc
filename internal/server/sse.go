package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/embykit/filem/internal/aimsg"
)

// sseWriter streams session events as Server-Sent Events.
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// newSSEWriter prepares w for SSE streaming and sets the response headers.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteMessage sends one AIMessage as a "message" event.
func (s *sseWriter) WriteMessage(msg aimsg.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return s.writeEvent("message", string(payload))
}

// writeEvent writes one SSE frame. Each line of data gets its own "data: "
// prefix per the SSE framing rules.
func (s *sseWriter) writeEvent(event, data string) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return fmt.Errorf("writing event name: %w", err)
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return fmt.Errorf("writing terminator: %w", err)
	}
	s.flusher.Flush()
	return nil
}
