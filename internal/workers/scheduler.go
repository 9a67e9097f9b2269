package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"weather_station/internal/logger"
	"weather_station/internal/metrics"
)

const stopTimeout = 30 * time.Second

var (
	errAlreadyStarted = errors.New("scheduler already started")
	errNotStarted     = errors.New("scheduler not started")
	errStopTimeout    = errors.New("worker shutdown timed out")
)

// recorder is implemented by workers embedding *BaseWorker.
type recorder interface {
	record(err error)
}

// Scheduler manages and coordinates multiple workers
type Scheduler struct {
	workers []Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool
}

func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// RegisterWorker adds a worker to the scheduler
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("worker_register_after_start", "worker", w.Name())
		return
	}
	s.workers = append(s.workers, w)
	s.log.Infow("worker_registered", "worker", w.Name(), "interval", w.Interval(), "enabled", w.Enabled())
}

// Start begins running all registered workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, w := range s.workers {
		if !w.Enabled() {
			s.log.Infow("worker_disabled", "worker", w.Name())
			continue
		}
		s.wg.Add(1)
		go s.runWorker(w)
	}
	return nil
}

// Stop cancels every worker and waits for in-flight iterations.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errNotStarted
	}
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.log.Infow("workers_stopped")
	case <-time.After(stopTimeout):
		s.log.Warnw("workers_stop_timeout", "timeout", stopTimeout)
		err = errStopTimeout
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return err
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Workers returns the registered workers.
func (s *Scheduler) Workers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

func (s *Scheduler) runWorker(w Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	// Run immediately on start
	s.execute(w)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.execute(w)
		}
	}
}

func (s *Scheduler) execute(w Worker) {
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("worker_panic", "worker", w.Name(), "panic", r)
			err = errors.New("worker panicked")
		}
		metrics.RecordWorkerExecution(w.Name(), time.Since(start), err)
		if rw, ok := w.(recorder); ok {
			rw.record(err)
		}
	}()

	err = w.Run(s.ctx)
	if err != nil {
		s.log.Errorw("worker_failed", "worker", w.Name(), "err", err, "duration", time.Since(start))
		return
	}
	s.log.Debugw("worker_done", "worker", w.Name(), "duration", time.Since(start))
}
