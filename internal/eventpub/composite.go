// Package eventpub implements the composite event publisher: every emitted
// event reaches the connection store, the opponent bus (when an AI is
// seated), and the durable game log, each sink isolated from the others'
// failures.
package eventpub

import (
	"context"
	"encoding/json"

	"github.com/decred/slog"

	"github.com/vctt94/koikoisrv/internal/ports"
)

// loggableEventTypes are the replay-worthy events that get durably logged.
// Transient events (InitialState, GameSnapshotRestore, prompts without
// content) are deliberately absent.
var loggableEventTypes = map[string]bool{
	"GameStarted":                true,
	"RoundDealt":                 true,
	"TurnCompleted":              true,
	"SelectionRequired":          true,
	"TurnProgressAfterSelection": true,
	"DecisionRequired":           true,
	"DecisionMade":               true,
	"RoundEnded":                 true,
	"GameFinished":               true,
}

// Composite is the production ports.EventPublisher.
type Composite struct {
	log     slog.Logger
	conn    ports.ConnectionStore
	bus     *OpponentBus // nil when no game ever seats an AI opponent
	gamelog ports.GameLogStore
}

// New wires the three sinks together. bus may be nil.
func New(log slog.Logger, conn ports.ConnectionStore, bus *OpponentBus, gamelog ports.GameLogStore) *Composite {
	return &Composite{log: log, conn: conn, bus: bus, gamelog: gamelog}
}

// Publish fans ev out to every sink. Each sink runs under its own
// recover(), so a panic in one (e.g. a malformed payload during
// marshaling) cannot prevent delivery to the others.
func (c *Composite) Publish(ctx context.Context, ev ports.Event) {
	c.safe("connection store", func() {
		c.conn.Broadcast(ev.GameID, ev)
	})

	if c.bus != nil {
		c.safe("opponent bus", func() {
			c.bus.publish(ev)
		})
	}

	if loggableEventTypes[ev.EventType] {
		c.safe("game log", func() {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				c.log.Errorf("game log marshal failed (game=%s type=%s): %v", ev.GameID, ev.EventType, err)
				return
			}
			_ = c.gamelog.Append(ctx, ports.LogRecord{
				GameID:    ev.GameID,
				PlayerID:  ev.PlayerID,
				EventType: ev.EventType,
				Payload:   payload,
				CreatedAt: ev.Timestamp,
			})
		})
	}
}

// PublishToPlayer implements ports.EventPublisher. It reaches one player's
// SSE subscriber instead of every subscriber of the game, and still feeds
// the opponent bus and (for replay-worthy types) the game log, tagged with
// playerID as the recipient.
func (c *Composite) PublishToPlayer(ctx context.Context, playerID string, ev ports.Event) {
	c.safe("connection store", func() {
		c.conn.SendToPlayer(ev.GameID, playerID, ev)
	})

	if c.bus != nil {
		c.safe("opponent bus", func() {
			c.bus.publish(ev)
		})
	}

	if loggableEventTypes[ev.EventType] {
		c.safe("game log", func() {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				c.log.Errorf("game log marshal failed (game=%s type=%s): %v", ev.GameID, ev.EventType, err)
				return
			}
			_ = c.gamelog.Append(ctx, ports.LogRecord{
				GameID:    ev.GameID,
				PlayerID:  playerID,
				EventType: ev.EventType,
				Payload:   payload,
				CreatedAt: ev.Timestamp,
			})
		})
	}
}

func (c *Composite) safe(sink string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("event publisher sink %q panicked: %v", sink, r)
		}
	}()
	fn()
}
