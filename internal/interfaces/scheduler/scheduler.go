package scheduler

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"
)

// ScheduleTime represents a specific time of day when the scheduler should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

func (st ScheduleTime) minutes() int {
	return st.Hour*60 + st.Minute
}

// ParseScheduleTime parses a 24h HH:MM time of day.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time %q (expected HH:MM): %w", s, err)
	}
	return ScheduleTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Scheduler submits the provider's jobs to a worker pool at fixed times of
// day, read in its configured location.
type Scheduler struct {
	workerPool    *WorkerPool
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	jobProvider   JobProvider
	location      *time.Location
	now           func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	lastSlot string
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
	JobProvider   JobProvider
	// Location is the zone schedule times are read in. Defaults to UTC.
	Location *time.Location
}

// NewScheduler creates a new scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(config.ScheduleTimes))
	for _, timeStr := range config.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}
	slices.SortFunc(scheduleTimes, func(a, b ScheduleTime) int {
		return a.minutes() - b.minutes()
	})
	scheduleTimes = slices.Compact(scheduleTimes)

	location := config.Location
	if location == nil {
		location = time.UTC
	}

	workerPool := NewWorkerPool(config.WorkerCount, config.JobDelay, config.QueueSize)
	ctx, cancel := context.WithCancel(context.Background())

	log.Printf("Scheduler initialized with %d schedule times: %v (%s)", len(scheduleTimes), config.ScheduleTimes, location)
	log.Printf("Worker pool: %d workers, %v delay between jobs", config.WorkerCount, config.JobDelay)

	return &Scheduler{
		workerPool:    workerPool,
		scheduleTimes: scheduleTimes,
		runOnStartup:  config.RunOnStartup,
		jobProvider:   config.JobProvider,
		location:      location,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the scheduler and worker pool.
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	s.workerPool.Start()

	if s.runOnStartup {
		log.Println("Scheduler: Running initial job batch on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobs()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Printf("Scheduler started, next run at %s", s.NextRun().Format(time.RFC3339))
}

// scheduleLoop sleeps until the next slot, fires it and repeats.
func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	for {
		next := s.NextRun()
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-s.ctx.Done():
			timer.Stop()
			log.Println("Scheduler loop: Context cancelled, shutting down")
			return

		case <-timer.C:
			if s.shouldRun(next) {
				log.Printf("Scheduler: Running %s slot", next.Format("15:04 MST"))
				s.runJobs()
			}
		}
	}
}

// shouldRun reports whether t falls on a schedule slot that has not fired
// yet. Each slot fires at most once per day.
func (s *Scheduler) shouldRun(t time.Time) bool {
	t = t.In(s.location)
	slot := ScheduleTime{Hour: t.Hour(), Minute: t.Minute()}
	if !slices.Contains(s.scheduleTimes, slot) {
		return false
	}

	key := t.Format("2006-01-02 ") + slot.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSlot == key {
		return false
	}
	s.lastSlot = key
	return true
}

// runJobs executes the job provider and submits jobs to the worker pool.
func (s *Scheduler) runJobs() {
	if s.jobProvider == nil {
		log.Println("Scheduler: No job provider configured")
		return
	}

	log.Println("Scheduler: Fetching jobs...")

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		log.Printf("Scheduler: Failed to fetch jobs: %v", err)
		return
	}

	if len(jobs) == 0 {
		log.Println("Scheduler: No jobs to process")
		return
	}

	log.Printf("Scheduler: Submitting %d jobs to worker pool", len(jobs))
	s.workerPool.SubmitBatch(jobs)
}

// Shutdown gracefully stops the scheduler and worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: Initiating graceful shutdown...")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Scheduler: Scheduler loop stopped gracefully")
	case <-time.After(timeout):
		log.Println("Scheduler: Timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)

	log.Println("Scheduler: Shutdown complete")
}

// NextRun returns the next scheduled run time in the scheduler's location.
func (s *Scheduler) NextRun() time.Time {
	now := s.now().In(s.location)

	for _, st := range s.scheduleTimes {
		scheduledTime := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, s.location)
		if scheduledTime.After(now) {
			return scheduledTime
		}
	}

	st := s.scheduleTimes[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), st.Hour, st.Minute, 0, 0, s.location)
}
