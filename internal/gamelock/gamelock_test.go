package gamelock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireSerializesSameGame(t *testing.T) {
	m := New()
	ctx := context.Background()

	_, release1, err := m.Acquire(ctx, "g1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, release2, err := m.Acquire(ctx, "g1")
		require.NoError(t, err)
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while the first holds the lock")
	case <-time.After(20 * time.Millisecond):
	}

	release1()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire should unblock once the first releases")
	}
}

func TestAcquireIsReentrant(t *testing.T) {
	m := New()
	ctx := context.Background()

	heldCtx, release1, err := m.Acquire(ctx, "g1")
	require.NoError(t, err)
	defer release1()

	_, release2, err := m.Acquire(heldCtx, "g1")
	require.NoError(t, err)
	release2() // no-op; must not deadlock or unblock other waiters prematurely
}

func TestAcquireDifferentGamesDoNotBlock(t *testing.T) {
	m := New()
	ctx := context.Background()

	_, release1, err := m.Acquire(ctx, "g1")
	require.NoError(t, err)
	defer release1()

	done := make(chan struct{})
	go func() {
		_, release2, err := m.Acquire(ctx, "g2")
		require.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different game id must not block on g1's lock")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	m := New()
	ctx := context.Background()
	_, release1, err := m.Acquire(ctx, "g1")
	require.NoError(t, err)
	defer release1()

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, _, err = m.Acquire(cctx, "g1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := New()
	_, release, err := m.Acquire(context.Background(), "g1")
	require.NoError(t, err)
	require.NotPanics(t, func() {
		release()
		release()
	})
}

func TestConcurrentAcquireReleaseManyGames(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			gameID := "game"
			if n%2 == 0 {
				gameID = "other-game"
			}
			_, release, err := m.Acquire(context.Background(), gameID)
			require.NoError(t, err)
			release()
		}(i)
	}
	wg.Wait()
}
