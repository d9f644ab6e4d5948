// Package ports declares the interfaces the use cases and turn-flow
// service (internal/usecase, internal/turnflow) depend on, and that the
// adapter packages under internal/ implement. Nothing in this package does
// I/O itself.
package ports

import (
	"context"
	"time"

	"github.com/vctt94/koikoisrv/internal/cardgame"
)

// Event is the envelope every SSE event and game-log record carries.
// PlayerID is empty for events that are not player-scoped.
type Event struct {
	EventType string
	EventID   string
	Timestamp time.Time
	GameID    string
	PlayerID  string
	Payload   any
}

// EventPublisher is the composite fan-out: one Publish call reaches the
// connection store, the opponent bus, and the game log, each sink isolated
// from the others' failures.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event)
	// PublishToPlayer delivers ev only to playerID's SSE subscriber instead
	// of broadcasting to every subscriber of the game, for payloads that
	// must differ per viewer: RoundDealt exposes the recipient's own hand in
	// full and the opponent's by count only, and InitialState /
	// GameSnapshotRestore are inherently single-recipient. It still reaches
	// the opponent bus and, for replay-worthy event types, the game log
	// tagged with playerID.
	PublishToPlayer(ctx context.Context, playerID string, ev Event)
}

// GameStore is the in-memory source of truth for in-progress games.
type GameStore interface {
	Get(gameID string) (*cardgame.Game, bool)
	Set(gameID string, game *cardgame.Game)
	Delete(gameID string)
	// FindWaiting returns a WAITING game with an open seat, if any, so
	// JoinGame can seat a second player instead of creating a new game.
	FindWaiting() (*cardgame.Game, bool)
}

// GameLock is the per-game reentrant critical section.
// Acquire blocks until this call (or an outer call already holding the
// same game id within this logical call chain) owns the game id. It
// returns a context carrying that ownership (pass it to any nested call
// that might re-enter the same game's lock) and a release function that
// must run on every exit path.
type GameLock interface {
	Acquire(ctx context.Context, gameID string) (heldCtx context.Context, release func(), err error)
}

// TimerClass names one of the independent timer families.
type TimerClass string

const (
	ActionTimer               TimerClass = "action"
	DisconnectTimer           TimerClass = "disconnect"
	IdleTimer                 TimerClass = "idle"
	ContinueConfirmationTimer TimerClass = "continue_confirmation"
	MatchmakingTimer          TimerClass = "matchmaking"
	DisplayTimer              TimerClass = "display"
)

// TimerKey scopes a timer to a game, and optionally to a player within it.
type TimerKey struct {
	GameID   string
	PlayerID string // empty for game-scoped timers
}

// TimeoutManager is the multi-class timer registry: each class is an
// independent namespace of keyed one-shot timers.
type TimeoutManager interface {
	Start(class TimerClass, key TimerKey, d time.Duration, onFire func())
	Clear(class TimerClass, key TimerKey)
	ClearAllForGame(gameID string)
	Has(class TimerClass, key TimerKey) bool
	RemainingSeconds(class TimerClass, key TimerKey) (float64, bool)
}

// Subscriber is one connected client's event sink, implemented by the SSE
// handler. Close ends the stream from the server side and must be
// idempotent.
type Subscriber interface {
	Send(ev Event) error
	Close()
}

// ConnectionStore is the per-game per-player subscriber registry.
type ConnectionStore interface {
	Subscribe(gameID, playerID string, sub Subscriber)
	Unsubscribe(gameID, playerID string)
	// Drop removes the subscriber like Unsubscribe and also closes its
	// stream, for server-initiated disconnects (e.g. an abandoned WAITING
	// game whose lone player would otherwise hold a stream open forever).
	Drop(gameID, playerID string)
	Broadcast(gameID string, ev Event)
	SendToPlayer(gameID, playerID string, ev Event) bool
	IsConnected(gameID, playerID string) bool
}

// OpponentBus is the per-game channel registry the AI opponent subsystem
// reads from. A channel is registered when a room is created with an AI
// seat requested and unregistered once the game finishes; games without an
// AI never register one.
type OpponentBus interface {
	Register(gameID string, bufferSize int) <-chan Event
	Unregister(gameID string)
}

// GameLogStore appends replay-worthy records with a globally increasing
// sequence number.
type GameLogStore interface {
	Append(ctx context.Context, record LogRecord) error
}

// LogRecord is one append-only game-log entry.
type LogRecord struct {
	SequenceNumber int64
	GameID         string
	PlayerID       string // empty when not player-scoped
	EventType      string
	Payload        []byte // JSON
	CreatedAt      time.Time
}

// Repository persists the minimal subset of state needed to survive a
// restart: game ids, player ids, round tallies, finished-game scores.
// currentRound is deliberately not part of this interface; it lives only
// in memory.
type Repository interface {
	SaveGameSummary(ctx context.Context, summary GameSummary) error
	LoadGameSummary(ctx context.Context, gameID string) (GameSummary, bool, error)
}

// GameSummary is the restart-survivable projection of a Game.
type GameSummary struct {
	GameID           string
	PlayerIDs        []string
	RoundsPlayed     int
	CumulativeScores map[string]int
	Status           cardgame.GameStatus
	FinishReason     cardgame.GameFinishReason
	WinnerID         string
	UpdatedAt        time.Time
}

// Clock abstracts time.Now so turn-flow and timeout tests can control it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
