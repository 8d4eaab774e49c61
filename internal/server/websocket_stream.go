package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"nhooyr.io/websocket"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

const socketWriteTimeout = 5 * time.Second

// handleEventSocket pushes bus events to the client over a websocket.
// The connection is write-only; incoming data messages close it.
func (s *Server) handleEventSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.CloseNow()

	filter := parseTypeFilter(r.URL.Query().Get("types"))

	eventChan := make(chan *events.Event, 100)
	unsubscribe := s.container.Bus.SubscribeAll(func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			s.log.Warn().Str("type", string(event.Type)).Msg("Dropping event for slow websocket client")
		}
	})
	defer unsubscribe()

	clientID := middleware.GetReqID(r.Context())
	s.log.Info().Str("client", clientID).Msg("Websocket client connected")

	ctx := conn.CloseRead(r.Context())

	welcome, _ := json.Marshal(map[string]string{"status": "connected"})
	if err := writeSocket(ctx, conn, welcome); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("client", clientID).Msg("Websocket client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, socketWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.log.Debug().Err(err).Str("client", clientID).Msg("Websocket ping failed")
				return
			}
		case event := <-eventChan:
			if !filter.allows(event.Type) {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.log.Error().Err(err).Msg("Failed to marshal event")
				continue
			}
			if err := writeSocket(ctx, conn, data); err != nil {
				s.log.Debug().Err(err).Str("client", clientID).Msg("Websocket write failed")
				return
			}
		}
	}
}

func writeSocket(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, socketWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
