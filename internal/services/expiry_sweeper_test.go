package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/maitri/internal/models"
)

type settableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *settableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *settableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func waitForStatus(t *testing.T, svc *GiftCardService, id, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		card, err := svc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if card.Status == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("card %s status = %s, want %s", id, card.Status, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestExpirySweeperRunsAtStartAndOnTick(t *testing.T) {
	svc := newGiftCardService(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := &settableClock{now: now.AddDate(-2, 0, 0)}
	svc.now = clock.Now

	first := issue(t, svc, "20")
	clock.Set(now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := NewExpirySweeper(svc, 20*time.Millisecond)
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	waitForStatus(t, svc, first.ID, models.GiftCardStatusExpired)

	// Issued after the first sweep, so only a later tick can expire it.
	clock.Set(now.AddDate(-2, 0, 0))
	second := issue(t, svc, "20")
	clock.Set(now)

	waitForStatus(t, svc, second.ID, models.GiftCardStatusExpired)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after the context was cancelled")
	}
}

func TestNewExpirySweeperDefaultsToDaily(t *testing.T) {
	sweeper := NewExpirySweeper(nil, 0)
	if sweeper.interval != 24*time.Hour {
		t.Errorf("interval = %v, want 24h", sweeper.interval)
	}
}
