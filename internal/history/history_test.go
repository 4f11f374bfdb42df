package history

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
)

func round(code string, n int) Round {
	return Round{
		RoomCode:   code,
		Number:     n,
		ServerHand: engine.HandRock,
		Results: []engine.Result{
			{MemberID: "a", Name: "Alice", Hand: engine.HandPaper, Outcome: engine.OutcomeWin},
			{MemberID: "b", Name: "Bob", Hand: engine.HandScissors, Outcome: engine.OutcomeLose},
		},
		ResolvedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestMemory_KeepsNewestFirstWithinCap(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, m.Save(ctx, round("QWER", i)))
	}

	got, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{5, 4, 3}, []int{got[0].Number, got[1].Number, got[2].Number})

	got, err = m.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Number)
}

type flakyStore struct {
	*Memory
	mu    sync.Mutex
	fails int
}

func (f *flakyStore) Save(ctx context.Context, r Round) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errors.New("boom")
	}
	f.mu.Unlock()
	return f.Memory.Save(ctx, r)
}

func TestQueue_RunSavesAndFlushesOnStop(t *testing.T) {
	store := &flakyStore{Memory: NewMemory(10), fails: 1}
	q := NewQueue(store, 8, nil)

	q.Record(round("QWER", 1)) // dropped by the failing save
	q.Record(round("QWER", 2))
	q.Record(round("QWER", 3))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, _ := q.Recent(context.Background(), 10)
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestQueue_RecordNeverBlocks(t *testing.T) {
	q := NewQueue(NewMemory(10), 1, nil)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Record(round("QWER", i))
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
}

func TestPostgres_SaveAndRecent(t *testing.T) {
	dsn := os.Getenv("HISTORY_TEST_DSN")
	if dsn == "" {
		t.Skip("HISTORY_TEST_DSN not set")
	}

	p, err := OpenPostgres(dsn)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	code := "T" + time.Now().Format("150405")
	require.NoError(t, p.Save(ctx, round(code, 1)))
	require.NoError(t, p.Save(ctx, round(code, 2)))

	got, err := p.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Number)
	assert.Equal(t, code, got[0].RoomCode)
	require.Len(t, got[0].Results, 2)
	assert.Equal(t, "Alice", got[0].Results[0].Name)
	assert.Equal(t, engine.OutcomeLose, got[0].Results[1].Outcome)
}
