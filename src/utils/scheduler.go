package utils

import (
	"fmt"
	"sync"
	"sync/atomic"

	"market-pipeline/src/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic pipeline jobs on a seconds-resolution cron.
type Scheduler struct {
	Cron   *cron.Cron
	Logger *logger.Logger

	mu      sync.Mutex
	running map[string]*atomic.Bool
}

// -----------------------------------------------------------------------------

func NewScheduler(l *logger.Logger) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Logger:  l,
		running: make(map[string]*atomic.Bool),
	}
}

// -----------------------------------------------------------------------------

// EverySeconds builds a cron spec firing every n seconds.
func EverySeconds(n int) string {
	return fmt.Sprintf("@every %ds", n)
}

// -----------------------------------------------------------------------------

// AddJob registers fn under name. A run that is still in progress when the next
// tick fires makes that tick a no-op, so slow jobs never pile up.
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	s.mu.Lock()
	flag, ok := s.running[name]
	if !ok {
		flag = &atomic.Bool{}
		s.running[name] = flag
	}
	s.mu.Unlock()

	_, err := s.Cron.AddFunc(spec, func() {
		if !flag.CompareAndSwap(false, true) {
			s.Logger.Debug("Job %s still running, skipping tick", name)
			return
		}
		defer flag.Store(false)
		fn()
	})
	if err != nil {
		return fmt.Errorf("register %s job (%s): %w", name, spec, err)
	}

	s.Logger.Info("Registered job %s (%s)", name, spec)
	return nil
}

// -----------------------------------------------------------------------------

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("Scheduler started with %d jobs", len(s.Cron.Entries()))
}

// -----------------------------------------------------------------------------

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("Scheduler stopped")
}
