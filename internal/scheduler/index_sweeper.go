package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/logger"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = time.Hour

// IndexSweeper removes owner-index entries whose bookmark record is gone
// (expired or deleted outside the store).
type IndexSweeper struct {
	store    *redisstore.BookmarkStore
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

func NewIndexSweeper(store *redisstore.BookmarkStore, log logger.Logger, interval time.Duration) *IndexSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &IndexSweeper{
		store:    store,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start sweeps immediately, then on every interval.
func (s *IndexSweeper) Start(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Warn("initial index sweep failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("index sweep failed", logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweeper
func (s *IndexSweeper) Stop() {
	close(s.stopCh)
}

// Sweep cleans every owner index and returns the number of entries removed.
// One failing owner does not stop the others.
func (s *IndexSweeper) Sweep(ctx context.Context) (int, error) {
	owners, err := s.store.Owners(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	var firstErr error
	for _, owner := range owners {
		n, err := s.store.SweepOwnerIndex(ctx, owner)
		total += n
		if err != nil {
			s.logger.Warn("failed to sweep owner index",
				logger.String("owner_id", owner), logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if total > 0 {
		s.logger.Info("index sweep completed",
			logger.Int("owners", len(owners)),
			logger.Int("removed", total))
	} else {
		s.logger.Debug("no dangling index entries")
	}
	return total, firstErr
}
