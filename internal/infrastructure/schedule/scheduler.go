package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// JobInfo describes one registered background job
type JobInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	NextRun  time.Time     `json:"next_run,omitempty"`
}

// Scheduler is the shared background job runner
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job // name -> job
	intervals map[string]time.Duration
	logger    *zap.Logger
}

// New creates a stopped scheduler. A nil clock uses wall time; tests inject
// a fake to control job timing.
func New(logger *zap.Logger, clk clockwork.Clock) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	s, err := gocron.NewScheduler(gocron.WithClock(clk))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		intervals: make(map[string]time.Duration),
		logger:    logger,
	}, nil
}

// Every registers a named job running task at a fixed interval. Names must
// be unique; the first run happens one full interval after Start.
func (s *Scheduler) Every(name string, interval time.Duration, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.intervals[name] = interval
	s.logger.Info("background job registered",
		zap.String("name", name),
		zap.Duration("interval", interval))
	return nil
}

// Remove stops and deregisters a named job. Unknown names are a no-op.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return
	}
	if err := s.scheduler.RemoveJob(job.ID()); err != nil {
		s.logger.Warn("background job removal failed",
			zap.String("name", name),
			zap.Error(err))
	}
	delete(s.jobs, name)
	delete(s.intervals, name)
	s.logger.Info("background job removed", zap.String("name", name))
}

// Has reports whether a job with the given name is registered
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// List returns info about every registered job
func (s *Scheduler) List() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, job := range s.jobs {
		info := JobInfo{
			ID:       job.ID().String(),
			Name:     name,
			Interval: s.intervals[name],
		}
		if last, err := job.LastRun(); err == nil {
			info.LastRun = last
		}
		if next, err := job.NextRun(); err == nil {
			info.NextRun = next
		}
		infos = append(infos, info)
	}
	return infos
}

// Start begins executing registered jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	count := len(s.jobs)
	s.mu.Unlock()

	s.scheduler.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", count))
}

// Stop shuts the scheduler down and waits for running jobs to finish
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
