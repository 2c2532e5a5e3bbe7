package invites

import (
	"context"
	"time"

	"dtr/internal/logs"
)

type cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Sweeper периодически переводит просроченные приглашения в expired.
type Sweeper struct {
	svc      cleaner
	interval time.Duration
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run блокируется до отмены ctx; первый проход сразу при старте.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.svc.CleanupExpired(ctx); err != nil && ctx.Err() == nil {
		logs.Logger.Errorf("invitation sweep: %v", err)
	}
}
