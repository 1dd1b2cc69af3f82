package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// CommandFunc forwards an overlay-originated command back into the
// interpret/execute pipeline, scoped by the originating session id.
type CommandFunc func(ctx context.Context, sessionID, command string)

// wsSubscriber adapts one websocket connection to the Subscriber
// interface. Gorilla connections allow one concurrent writer, so Send
// serializes writes with a mutex.
type wsSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// inboundMessage is what an overlay or dashboard client sends us.
type inboundMessage struct {
	Type      string `json:"type"` // subscribe | unsubscribe | command
	SessionID string `json:"sessionId"`
	Command   string `json:"command,omitempty"`
}

var upgrader = websocket.Upgrader{
	// The dashboard and in-page overlay connect cross-origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns an http.Handler that attaches websocket clients to
// the broadcaster. Inbound "command" messages re-enter the pipeline
// through run; their progress flows back out through the same
// broadcaster.
func Handler(b *Broadcaster, run CommandFunc, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		sub := &wsSubscriber{conn: conn}
		logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

		defer func() {
			b.Drop(sub)
			_ = conn.Close()
			logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client disconnected")
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg inboundMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				logger.Debug().Err(err).Msg("bad websocket message")
				continue
			}
			if msg.SessionID == "" {
				continue
			}
			if dispatch(b, sub, msg, run) {
				return
			}
		}
	})
}

// dispatch handles one inbound message. It reports true when the
// connection is beyond use and should be torn down.
func dispatch(b *Broadcaster, sub Subscriber, msg inboundMessage, run CommandFunc) bool {
	switch msg.Type {
	case "subscribe":
		b.Subscribe(msg.SessionID, sub)
		ack, _ := json.Marshal(map[string]string{
			"type":      "subscribed",
			"sessionId": msg.SessionID,
		})
		if err := sub.Send(ack); err != nil {
			// A connection that cannot take the ack cannot take events
			// either.
			b.Drop(sub)
			return true
		}
	case "unsubscribe":
		b.Unsubscribe(msg.SessionID, sub)
	case "command":
		if msg.Command == "" || run == nil {
			return false
		}
		// Run in its own goroutine so a long execution does not stall
		// this client's read loop. The execution outlives the
		// connection that triggered it.
		go run(context.Background(), msg.SessionID, msg.Command)
	}
	return false
}
