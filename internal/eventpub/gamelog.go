package eventpub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/koikoisrv/internal/ports"
)

// WriteFunc persists one log record; the Write method of sqlite.GameLog
// (internal/repository/sqlite) is the production implementation.
type WriteFunc func(ctx context.Context, record ports.LogRecord) error

// GameLog is a bounded-queue, worker-pool writer: Append enqueues
// non-blockingly and drops on a full queue rather than applying
// backpressure to the caller. An unbounded queue would hide backpressure
// until memory ran out; dropped records are counted instead.
type GameLog struct {
	log   slog.Logger
	write WriteFunc

	queue    chan ports.LogRecord
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool

	seq     atomic.Int64
	dropped atomic.Int64
	slow    atomic.Int64
}

// NewGameLog returns a GameLog with queueSize buffered slots. Call Start
// with the desired worker count before the first Append.
func NewGameLog(log slog.Logger, write WriteFunc, queueSize int) *GameLog {
	return &GameLog{
		log:      log,
		write:    write,
		queue:    make(chan ports.LogRecord, queueSize),
		stopChan: make(chan struct{}),
	}
}

// Start launches the background writer goroutines.
func (l *GameLog) Start(workerCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	if workerCount < 1 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		l.wg.Add(1)
		go l.run()
	}
}

// Stop drains in-flight writes and stops accepting new workers.
func (l *GameLog) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.started = false
	l.mu.Unlock()

	close(l.stopChan)
	l.wg.Wait()
}

func (l *GameLog) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopChan:
			return
		case record := <-l.queue:
			l.writeOne(record)
		}
	}
}

func (l *GameLog) writeOne(record ports.LogRecord) {
	start := time.Now()
	if err := l.write(context.Background(), record); err != nil {
		l.log.Errorf("game log write failed (game=%s type=%s seq=%d): %v", record.GameID, record.EventType, record.SequenceNumber, err)
		return
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		l.slow.Add(1)
		l.log.Warnf("slow game log write: %s (game=%s type=%s seq=%d)", elapsed, record.GameID, record.EventType, record.SequenceNumber)
	}
}

// Append implements ports.GameLogStore. It assigns the next sequence
// number, enqueues the record, and returns immediately; a full queue drops
// the record and increments a counter rather than blocking the caller.
func (l *GameLog) Append(ctx context.Context, record ports.LogRecord) error {
	record.SequenceNumber = l.seq.Add(1)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	select {
	case l.queue <- record:
	default:
		l.dropped.Add(1)
		l.log.Warnf("game log queue full, dropping record (game=%s type=%s seq=%d)", record.GameID, record.EventType, record.SequenceNumber)
	}
	return nil
}

// Dropped returns how many records have been dropped for a full queue.
func (l *GameLog) Dropped() int64 { return l.dropped.Load() }

// Slow returns how many writes exceeded the 10ms slow-write threshold.
func (l *GameLog) Slow() int64 { return l.slow.Load() }
