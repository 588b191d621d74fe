package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds configuration for the scheduler.
type Config struct {
	WorkerCount int
	JobDelay    time.Duration
	JobTimeout  time.Duration
	QueueSize   int
	// Location evaluates cron expressions; defaults to time.Local.
	Location *time.Location
}

// Scheduler keeps cron registrations and one-off jobs keyed by id.
// Every run goes through the worker pool. Registering an id again replaces
// the previous registration, and a queued one-off that has been replaced
// or removed is skipped when its turn comes.
type Scheduler struct {
	pool *WorkerPool
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	gens    map[string]uint64
}

// New creates a scheduler. Call Start to begin processing.
func New(cfg Config) *Scheduler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		pool:    NewWorkerPool(cfg.WorkerCount, cfg.JobDelay, cfg.JobTimeout, cfg.QueueSize),
		cron:    cron.New(cron.WithLocation(loc)),
		entries: make(map[string]cron.EntryID),
		gens:    make(map[string]uint64),
	}
}

// Start launches the workers and the cron loop.
func (s *Scheduler) Start() {
	s.pool.Start()
	s.cron.Start()
	log.Printf("Scheduler started with %d cron entries", len(s.cron.Entries()))
}

// ScheduleCron registers job under id with a standard five-field cron spec
// or a descriptor such as "@daily".
func (s *Scheduler) ScheduleCron(id, spec string, job func(ctx context.Context) error) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[id]; ok {
		s.cron.Remove(prev)
	}
	entryID := s.cron.Schedule(sched, cron.FuncJob(func() {
		if err := s.pool.Submit(&FuncJob{JobID: id, Desc: "scheduled " + id, Fn: job}); err != nil {
			log.Printf("Warning: failed to queue scheduled %s: %v", id, err)
		}
	}))
	s.entries[id] = entryID
	log.Printf("Scheduled %s (%s)", id, spec)
	return nil
}

// ScheduleNow queues job for immediate execution. A previously queued job
// with the same id that has not started yet is discarded.
func (s *Scheduler) ScheduleNow(id string, job func(ctx context.Context) error) error {
	s.mu.Lock()
	s.gens[id]++
	gen := s.gens[id]
	s.mu.Unlock()

	return s.pool.Submit(&FuncJob{
		JobID: id,
		Desc:  "one-off " + id,
		Fn: func(ctx context.Context) error {
			if !s.current(id, gen) {
				log.Printf("Skipping %s: replaced or removed before it started", id)
				return nil
			}
			return job(ctx)
		},
	})
}

func (s *Scheduler) current(id string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[id] == gen
}

// Remove drops the cron entry for id and invalidates queued one-offs.
// A job that is already running is not interrupted.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
		log.Printf("Unscheduled %s", id)
	}
	if _, ok := s.gens[id]; ok {
		s.gens[id]++
	}
}

// Scheduled reports whether id has a cron entry.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// NextRun returns the next activation of id's cron entry.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	entryID, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(entryID).Next, true
}

// Shutdown stops the cron loop and drains the worker pool within timeout.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: shutting down")
	deadline := time.Now().Add(timeout)

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(timeout):
		log.Println("Scheduler: timeout waiting for cron loop")
	}

	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	s.pool.ShutdownWithTimeout(remaining)
	log.Println("Scheduler: shutdown complete")
}
