package services

import (
	"context"
	"log"
	"time"
)

// ExpirySweeper periodically expires gift cards past their expiry date.
type ExpirySweeper struct {
	giftCards *GiftCardService
	interval  time.Duration
}

// NewExpirySweeper constructs an ExpirySweeper. A non-positive interval falls back to daily.
func NewExpirySweeper(giftCards *GiftCardService, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &ExpirySweeper{giftCards: giftCards, interval: interval}
}

// Start runs one sweep immediately, then one per interval until ctx is done.
// It blocks; callers run it in its own goroutine.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Sweeper] stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := s.giftCards.SweepExpired(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[Sweeper] expiry sweep failed: %v", err)
	}
}
