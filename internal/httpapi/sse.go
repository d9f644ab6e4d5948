package httpapi

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"

	"github.com/vctt94/koikoisrv/internal/ports"
)

// wireEvent is the JSON body of every non-comment SSE frame; event_type,
// event_id, and timestamp are mandatory on all of them.
type wireEvent struct {
	EventType string `json:"event_type"`
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// formatSSE renders ev as one "event: ...\ndata: ...\n\n" frame.
func formatSSE(ev ports.Event) ([]byte, error) {
	body, err := json.Marshal(wireEvent{
		EventType: ev.EventType,
		EventID:   ev.EventID,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Data:      ev.Payload,
	})
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.EventType, body)), nil
}

// subscriber is the production ports.Subscriber: one connected client's
// event sink, backed by a buffered channel the connect handler's write loop
// drains. A full buffer drops the event rather than blocking the
// broadcaster, the same degrade-gracefully policy
// internal/eventpub.OpponentBus applies to its own channel.
type subscriber struct {
	log      slog.Logger
	gameID   string
	playerID string
	events   chan ports.Event

	closeOnce sync.Once
	closed    chan struct{}
}

func newSubscriber(log slog.Logger, gameID, playerID string, bufferSize int) *subscriber {
	return &subscriber{
		log:      log,
		gameID:   gameID,
		playerID: playerID,
		events:   make(chan ports.Event, bufferSize),
		closed:   make(chan struct{}),
	}
}

// Send implements ports.Subscriber.
func (s *subscriber) Send(ev ports.Event) error {
	select {
	case <-s.closed:
		return fmt.Errorf("httpapi: subscriber closed (game=%s player=%s)", s.gameID, s.playerID)
	default:
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return fmt.Errorf("httpapi: subscriber buffer full (game=%s player=%s type=%s)", s.gameID, s.playerID, ev.EventType)
	}
}

// Close implements ports.Subscriber. It is safe to call from both the
// connect handler's defer and a ConnectionStore.Drop racing it.
func (s *subscriber) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// streamLoop writes InitialState, then every subsequent event delivered to
// sub, plus periodic heartbeat comments, until the client disconnects or
// sub is closed. It returns once the connection ends.
func streamLoop(c *gin.Context, sub *subscriber, initial []byte, heartbeat time.Duration) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disables response buffering in nginx and similar front-end proxies.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(200)

	w.Write(initial)
	w.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.events:
			if !ok {
				return
			}
			frame, err := formatSSE(ev)
			if err != nil {
				sub.log.Errorf("sse marshal failed (game=%s player=%s type=%s): %v", sub.gameID, sub.playerID, ev.EventType, err)
				continue
			}
			w.Write(frame)
			w.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339))
			w.Flush()
		case <-c.Request.Context().Done():
			return
		case <-sub.closed:
			// A server-side close may race an event queued just before it
			// (e.g. the GameFinished of an abandoned WAITING game); flush
			// whatever is already buffered before ending the stream.
			for {
				select {
				case ev := <-sub.events:
					if frame, err := formatSSE(ev); err == nil {
						w.Write(frame)
						w.Flush()
					}
				default:
					return
				}
			}
		}
	}
}
