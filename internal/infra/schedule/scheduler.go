package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Locker guards a job so only one replica runs it at a time.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Job is one unit of scheduled work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. Overlapping runs of the same job on
// one replica are skipped; across replicas the Locker decides.
type Scheduler struct {
	Logger  *slog.Logger
	Locker  Locker
	LockTTL time.Duration

	cron *cron.Cron
	mu   sync.Mutex
	busy map[string]bool
}

func New(logger *slog.Logger, locker Locker, lockTTL time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Scheduler{
		Logger:  logger,
		Locker:  locker,
		LockTTL: lockTTL,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		busy:    make(map[string]bool),
	}
}

// Add registers jobs. ctx is handed to every run so shutdown cancels work
// in progress.
func (s *Scheduler) Add(ctx context.Context, jobs ...Job) error {
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.RunNow(ctx, job) }); err != nil {
			return err
		}
		s.Logger.Info("job scheduled", "job", job.Name, "schedule", job.Schedule)
	}
	return nil
}

// Run starts the cron loop and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// RunNow executes job once under the same guards as a scheduled run.
func (s *Scheduler) RunNow(ctx context.Context, job Job) {
	if !s.enter(job.Name) {
		s.Logger.DebugContext(ctx, "job still running, skipping", "job", job.Name)
		return
	}
	defer s.leave(job.Name)

	if s.Locker != nil {
		release, ok, err := s.Locker.TryAcquire(ctx, job.Name, s.LockTTL)
		if err != nil {
			s.Logger.ErrorContext(ctx, "job lock unavailable", "job", job.Name, "error", err)
			return
		}
		if !ok {
			s.Logger.DebugContext(ctx, "job held by another replica", "job", job.Name)
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.Logger.WarnContext(ctx, "job lock release failed", "job", job.Name, "error", err)
			}
		}()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.Logger.ErrorContext(ctx, "job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return
	}
	s.Logger.InfoContext(ctx, "job finished", "job", job.Name, "duration", time.Since(start))
}

func (s *Scheduler) enter(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[name] {
		return false
	}
	s.busy[name] = true
	return true
}

func (s *Scheduler) leave(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, name)
}
