package eventpub

import (
	"sync"

	"github.com/decred/slog"

	"github.com/vctt94/koikoisrv/internal/ports"
)

// OpponentBus is the in-process channel the AI opponent subsystem
// subscribes to per game id; the AI consumes the same event stream a human
// client would. It is only registered for games with an AI seated.
type OpponentBus struct {
	log slog.Logger

	mu       sync.RWMutex
	channels map[string]chan ports.Event
}

// NewOpponentBus returns an empty bus.
func NewOpponentBus(log slog.Logger) *OpponentBus {
	return &OpponentBus{log: log, channels: make(map[string]chan ports.Event)}
}

// Register opens gameID's channel for the AI subsystem to read from.
func (b *OpponentBus) Register(gameID string, bufferSize int) <-chan ports.Event {
	ch := make(chan ports.Event, bufferSize)
	b.mu.Lock()
	b.channels[gameID] = ch
	b.mu.Unlock()
	return ch
}

// Unregister closes and removes gameID's channel, called on game finish.
func (b *OpponentBus) Unregister(gameID string) {
	b.mu.Lock()
	ch, ok := b.channels[gameID]
	delete(b.channels, gameID)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// publish delivers ev to gameID's channel if one is registered, dropping
// and logging rather than blocking if the AI subsystem is behind.
func (b *OpponentBus) publish(ev ports.Event) {
	b.mu.RLock()
	ch, ok := b.channels[ev.GameID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
		b.log.Warnf("opponent bus full, dropping event (game=%s type=%s)", ev.GameID, ev.EventType)
	}
}
