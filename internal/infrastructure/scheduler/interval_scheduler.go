package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalJob is one recurring pipeline job: drain the queue, run a sync
// sweep, probe the source API.
type IntervalJob struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// IntervalSchedulerConfig holds configuration for the interval scheduler
type IntervalSchedulerConfig struct {
	// RunTimeout is the maximum time a single job run can take
	RunTimeout time.Duration
}

// DefaultIntervalSchedulerConfig returns default interval scheduler configuration
func DefaultIntervalSchedulerConfig() IntervalSchedulerConfig {
	return IntervalSchedulerConfig{
		RunTimeout: 4 * time.Minute,
	}
}

// IntervalScheduler runs registered jobs on fixed intervals, one goroutine
// per job. A run that fails is logged and the ticker keeps going; runs of the
// same job never overlap.
type IntervalScheduler struct {
	cfg    IntervalSchedulerConfig
	jobs   []IntervalJob
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalScheduler creates a new interval scheduler instance
func NewIntervalScheduler(cfg IntervalSchedulerConfig, logger *zap.Logger) *IntervalScheduler {
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = DefaultIntervalSchedulerConfig().RunTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalScheduler{
		cfg:    cfg,
		logger: logger.Named("scheduler"),
	}
}

// Register adds a job. Must be called before Start.
func (s *IntervalScheduler) Register(job IntervalJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.jobs = append(s.jobs, job)
}

// Start launches one ticker goroutine per registered job. Each job runs once
// immediately and then on every tick.
func (s *IntervalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	s.logger.Info("Interval scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("run_timeout", s.cfg.RunTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Interval scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Interval scheduler stop timed out")
		return ctx.Err()
	}
}

// loop drives one job's ticker
func (s *IntervalScheduler) loop(ctx context.Context, job IntervalJob) {
	defer s.wg.Done()

	s.runOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Job loop stopping", zap.String("job", job.Name))
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

// runOnce executes one job run under the run timeout
func (s *IntervalScheduler) runOnce(ctx context.Context, job IntervalJob) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	started := time.Now()
	if err := job.Run(runCtx); err != nil {
		s.logger.Error("Job run failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("Job run completed",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(started)),
	)
}
