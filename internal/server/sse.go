package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/msggate/msggate/internal/event"
)

// sseHeartbeatInterval is the interval for SSE heartbeat comments.
const sseHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for Server-Sent Events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// writeEvent writes one SSE event and flushes it.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}

	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// streamEvents streams lifecycle events from the bus as SSE until the
// client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sw, err := newSSEWriter(w)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, false, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	s.flushHeaders(sw)

	events := make(chan event.Event, 64)
	unsubscribe := s.bus.SubscribeAll(func(e event.Event) {
		// Drop rather than block: a stalled client must not back up the
		// lifecycle event loop.
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			sw.writeHeartbeat()
		case e := <-events:
			if err := sw.writeEvent(string(e.Type), e.Data); err != nil {
				s.log.Debug().Err(err).Msg("event stream client gone")
				return
			}
		}
	}
}

// flushHeaders pushes the response headers out so the client sees the
// stream open immediately.
func (s *Server) flushHeaders(sw *sseWriter) {
	if err := sw.rc.Flush(); err != nil {
		sw.flusher.Flush()
	}
}
