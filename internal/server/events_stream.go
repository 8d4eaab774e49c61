package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

const heartbeatInterval = 30 * time.Second

// handleEventStream pushes bus events to the client as server-sent
// events. An optional ?types= parameter restricts the stream to a
// comma-separated set of event types.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// The stream must outlive the server write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	filter := parseTypeFilter(r.URL.Query().Get("types"))

	eventChan := make(chan *events.Event, 100)
	unsubscribe := s.container.Bus.SubscribeAll(func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			s.log.Warn().Str("type", string(event.Type)).Msg("Dropping event for slow SSE client")
		}
	})
	defer unsubscribe()

	clientID := middleware.GetReqID(r.Context())
	s.log.Info().Str("client", clientID).Msg("SSE client connected")

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			s.log.Info().Str("client", clientID).Msg("SSE client disconnected")
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event := <-eventChan:
			if !filter.allows(event.Type) {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.log.Error().Err(err).Msg("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// typeFilter restricts a stream to a set of event types. An empty
// filter allows everything.
type typeFilter map[events.EventType]bool

func parseTypeFilter(raw string) typeFilter {
	if raw == "" {
		return nil
	}
	filter := make(typeFilter)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			filter[events.EventType(strings.ToUpper(part))] = true
		}
	}
	return filter
}

func (f typeFilter) allows(t events.EventType) bool {
	return len(f) == 0 || f[t]
}
