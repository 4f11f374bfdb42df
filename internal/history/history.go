package history

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
)

// Round is one resolved round as kept in the ledger.
type Round struct {
	RoomCode   string
	Number     int
	ServerHand engine.Hand
	Results    []engine.Result
	ResolvedAt time.Time
}

// Recorder accepts resolved rounds. Record must not block.
type Recorder interface {
	Record(Round)
}

type Store interface {
	Save(ctx context.Context, r Round) error
	Recent(ctx context.Context, limit int) ([]Round, error)
	Close() error
}

// Queue decouples rooms from the store: Record enqueues, Run drains.
type Queue struct {
	store Store
	ch    chan Round
	log   *slog.Logger
}

func NewQueue(store Store, size int, log *slog.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{store: store, ch: make(chan Round, size), log: log}
}

func (q *Queue) Record(r Round) {
	select {
	case q.ch <- r:
	default:
		q.log.Warn("history queue full, dropping round", "room", r.RoomCode, "round", r.Number)
	}
}

// Run saves queued rounds until ctx is done, then flushes what is left.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case r := <-q.ch:
			q.save(ctx, r)
		case <-ctx.Done():
			q.flush()
			return nil
		}
	}
}

func (q *Queue) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case r := <-q.ch:
			q.save(ctx, r)
		default:
			return
		}
	}
}

func (q *Queue) save(ctx context.Context, r Round) {
	if err := q.store.Save(ctx, r); err != nil {
		q.log.Error("save round", "room", r.RoomCode, "round", r.Number, "err", err)
	}
}

func (q *Queue) Recent(ctx context.Context, limit int) ([]Round, error) {
	return q.store.Recent(ctx, limit)
}

// Memory keeps the last max rounds in process. Used when no DSN is configured.
type Memory struct {
	mu     sync.Mutex
	max    int
	rounds []Round
}

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = 100
	}
	return &Memory{max: max}
}

func (m *Memory) Save(_ context.Context, r Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, r)
	if len(m.rounds) > m.max {
		m.rounds = slices.Delete(m.rounds, 0, len(m.rounds)-m.max)
	}
	return nil
}

// Recent returns newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.rounds)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
