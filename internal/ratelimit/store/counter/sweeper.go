package counter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper drops expired windows from an in-memory store on a cron schedule.
type Sweeper struct {
	store  *InMemory
	logger *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewSweeper(store *InMemory, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, logger: logger}
}

// Start schedules Sweep with a cron spec such as "@every 1m".
func (sw *Sweeper) Start(spec string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if n := sw.store.Sweep(); n > 0 {
			sw.logger.Debug("swept expired rate limit windows", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule rate limit sweep: %w", err)
	}
	c.Start()
	sw.cron = c
	return nil
}

// Stop halts scheduling and returns a context done once a running sweep ends.
func (sw *Sweeper) Stop() context.Context {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	done := sw.cron.Stop()
	sw.cron = nil
	return done
}
