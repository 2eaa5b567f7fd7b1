package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/citecheck/internal/config"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("orchestrator stopped")

// Orchestrator runs verification jobs on a pool of workers.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	pipeline *Pipeline
	log      *slog.Logger
	cfg      config.Config

	// mu guards stopped against Submit sending on a closed queue.
	mu       sync.RWMutex
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	finished [3]atomic.Int64 // completed, partial, failed
}

// Stats is a point-in-time view of the orchestrator.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	QueueSize  int   `json:"queue_size"`
	Tracked    int   `json:"tracked_jobs"`
	Completed  int64 `json:"completed"`
	Partial    int64 `json:"partial"`
	Failed     int64 `json:"failed"`
}

// NewOrchestrator creates the job queue. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, p *Pipeline, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		pipeline: p,
		log:      log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines and the job store janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.pipeline, o.log.With("worker", i))
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
					o.count(job.Snapshot().Status)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(cleanupInterval(o.cfg.JobTTL))
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// cleanupInterval sweeps a few times per TTL, at most every five minutes.
func cleanupInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv <= 0 || iv > 5*time.Minute {
		iv = 5 * time.Minute
	}
	return iv
}

func (o *Orchestrator) count(s JobStatus) {
	switch s {
	case StatusCompleted:
		o.finished[0].Add(1)
	case StatusPartial:
		o.finished[1].Add(1)
	case StatusFailed:
		o.finished[2].Add(1)
	}
}

// Stop cancels in-flight work, waits for the workers and fails any job that
// was still queued. It is safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	// Jobs still buffered never ran; fail them so pollers see a final state.
	for job := range o.queue {
		job.AddError(ErrStopped.Error())
		job.SetStatus(StatusFailed, "stopped")
		o.count(StatusFailed)
	}
}

// Submit registers job and queues it. A job that cannot be queued is marked
// failed and stays visible through GetJob.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		o.log.Debug("job queued", "job_id", job.ID, "filename", job.Filename, "depth", len(o.queue))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats reports queue occupancy and how many jobs ended in each final state.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Workers:    o.cfg.WorkerCount,
		QueueDepth: len(o.queue),
		QueueSize:  cap(o.queue),
		Tracked:    o.jobs.Len(),
		Completed:  o.finished[0].Load(),
		Partial:    o.finished[1].Load(),
		Failed:     o.finished[2].Load(),
	}
}

// Pipeline returns the pipeline jobs run through, for synchronous callers.
func (o *Orchestrator) Pipeline() *Pipeline {
	return o.pipeline
}
