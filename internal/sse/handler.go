package sse

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// writeDeadline bounds one event write so a stuck client cannot pin the
// handler goroutine.
const writeDeadline = 60 * time.Second

// Handler serves the event stream endpoint.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates the SSE HTTP handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// ServeHTTP streams events to one client until it disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)

	client := h.manager.Connect()
	defer h.manager.Disconnect(client.ID)

	// Confirm the stream is live before any event fires.
	if err := h.sendEvent(w, rc, NewHeartbeatEvent()); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case event := <-client.EventChan:
			if err := h.sendEvent(w, rc, event); err != nil {
				h.logger.Debug("SSE write failed, dropping client",
					"client_id", client.ID, "error", err)
				return
			}
		}
	}
}

func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	return rc.Flush()
}
