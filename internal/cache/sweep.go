package cache

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs ResponseCache.Sweep on a cron schedule.
type Sweeper struct {
	cache *ResponseCache
	cron  *cron.Cron
}

// NewSweeper builds a Sweeper; call Start to begin running on spec.
func NewSweeper(cache *ResponseCache) *Sweeper {
	return &Sweeper{cache: cache, cron: cron.New()}
}

// Start schedules the sweep on spec (standard five-field cron syntax, e.g.
// "0 */6 * * *" for every six hours) and starts the scheduler's own
// goroutine. Returns an error if spec doesn't parse.
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		removed, err := s.cache.Sweep(context.Background())
		if err != nil {
			zap.L().Error("cache: expiry sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			zap.L().Info("cache: expiry sweep removed entries", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
