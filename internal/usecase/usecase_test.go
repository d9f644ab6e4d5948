package usecase

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/config"
	"github.com/vctt94/koikoisrv/internal/connstore"
	"github.com/vctt94/koikoisrv/internal/gamelock"
	"github.com/vctt94/koikoisrv/internal/gamestore"
	"github.com/vctt94/koikoisrv/internal/ports"
	"github.com/vctt94/koikoisrv/internal/timeoutmgr"
)

func testLogger() slog.Logger {
	return slog.NewBackend(os.Stderr).Logger("TEST")
}

func testRuleset() cardgame.Ruleset {
	return cardgame.Ruleset{TotalRounds: 12, InstantEndBonus: 6, YakuPoints: config.DefaultYakuPoints()}
}

// fixedClock lets tests control "now" deterministically.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// fakePublisher records every published event for assertions.
type fakePublisher struct {
	mu         sync.Mutex
	broadcasts []ports.Event
	toPlayer   []ports.Event
}

func (f *fakePublisher) Publish(ctx context.Context, ev ports.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, ev)
}

func (f *fakePublisher) PublishToPlayer(ctx context.Context, playerID string, ev ports.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toPlayer = append(f.toPlayer, ev)
}

func (f *fakePublisher) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.broadcasts {
		out = append(out, ev.EventType)
	}
	for _, ev := range f.toPlayer {
		out = append(out, ev.EventType)
	}
	return out
}

// fakeRepo records saved summaries.
type fakeRepo struct {
	mu        sync.Mutex
	summaries map[string]ports.GameSummary
}

func newFakeRepo() *fakeRepo { return &fakeRepo{summaries: map[string]ports.GameSummary{}} }

func (f *fakeRepo) SaveGameSummary(ctx context.Context, s ports.GameSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[s.GameID] = s
	return nil
}

func (f *fakeRepo) LoadGameSummary(ctx context.Context, gameID string) (ports.GameSummary, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[gameID]
	return s, ok, nil
}

// fakeGameLog records log appends without any durability.
type fakeGameLog struct {
	mu      sync.Mutex
	records []ports.LogRecord
}

func (f *fakeGameLog) Append(ctx context.Context, rec ports.LogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

// fakeBus records opponent-bus registrations so tests can assert the AI
// wiring without a real AI subsystem reading the channels.
type fakeBus struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
	channels     map[string]chan ports.Event
}

func newFakeBus() *fakeBus { return &fakeBus{channels: map[string]chan ports.Event{}} }

func (b *fakeBus) Register(gameID string, bufferSize int) <-chan ports.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan ports.Event, bufferSize)
	b.channels[gameID] = ch
	b.registered = append(b.registered, gameID)
	return ch
}

func (b *fakeBus) Unregister(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, gameID)
	b.unregistered = append(b.unregistered, gameID)
}

func (b *fakeBus) registeredGames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.registered...)
}

func (b *fakeBus) unregisteredGames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.unregistered...)
}

// fakeScheduler records every call the Scheduler interface receives instead
// of driving a real turnflow.Service, keeping these tests scoped to the use
// case's own prelude/validation/dispatch logic.
type fakeScheduler struct {
	mu                  sync.Mutex
	armed               []string
	finalizedRoundEnd   []cardgame.RoundEndedInfo
	alreadyAppliedCalls []cardgame.RoundEndedInfo
	manualActions       []string
	autoActions         []string
	dealNextRoundCalls  []string
}

func (s *fakeScheduler) ArmNext(ctx context.Context, game *cardgame.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = append(s.armed, game.ID)
}

func (s *fakeScheduler) FinalizeRoundEnd(ctx context.Context, game *cardgame.Game, info cardgame.RoundEndedInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizedRoundEnd = append(s.finalizedRoundEnd, info)
}

func (s *fakeScheduler) PublishRoundEndedAlreadyApplied(ctx context.Context, game *cardgame.Game, info cardgame.RoundEndedInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alreadyAppliedCalls = append(s.alreadyAppliedCalls, info)
}

func (s *fakeScheduler) NoteManualAction(gameID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualActions = append(s.manualActions, gameID+":"+playerID)
}

func (s *fakeScheduler) NoteAutoAction(gameID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoActions = append(s.autoActions, gameID+":"+playerID)
}

func (s *fakeScheduler) DealNextRoundIfReady(ctx context.Context, gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dealNextRoundCalls = append(s.dealNextRoundCalls, gameID)
}

// harness bundles an Interactors with real (in-memory) store/lock/timeout
// adapters (simple, and already unit-tested on their own) plus fakes for
// the sinks that would otherwise perform I/O or require a real
// turnflow.Service.
type harness struct {
	it        *Interactors
	store     *gamestore.Store
	conn      *connstore.Store
	bus       *fakeBus
	publisher *fakePublisher
	repo      *fakeRepo
	gamelog   *fakeGameLog
	scheduler *fakeScheduler
	clock     fixedClock
}

func newHarness(now time.Time) *harness {
	h := &harness{
		store:     gamestore.New(),
		conn:      connstore.New(testLogger()),
		bus:       newFakeBus(),
		publisher: &fakePublisher{},
		repo:      newFakeRepo(),
		gamelog:   &fakeGameLog{},
		scheduler: &fakeScheduler{},
		clock:     fixedClock{t: now},
	}
	h.it = New(
		testLogger(),
		h.store,
		gamelock.New(),
		timeoutmgr.New(testLogger()),
		h.publisher,
		h.conn,
		h.bus,
		h.repo,
		h.gamelog,
		h.clock,
		testRuleset(),
		time.Minute,
		1,
	)
	h.it.SetScheduler(h.scheduler)
	return h
}

// seatedInProgressGame seats two players and deals round one, returning the
// resulting *cardgame.Game already installed in the harness's store.
func (h *harness) seatedInProgressGame(t *testing.T, gameID, p1, p2 string) *cardgame.Game {
	t.Helper()
	now := h.clock.Now()
	g := cardgame.NewWaitingGame(gameID, cardgame.Player{ID: p1}, testRuleset(), now).Seat(cardgame.Player{ID: p2}, now)
	dealt, _ := h.it.DealNextRound(g, p1)
	h.store.Set(gameID, dealt)
	return dealt
}
