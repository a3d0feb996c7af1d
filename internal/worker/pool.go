// Package worker implements a buffered worker pool for computing rating
// tables across many events at once. Each job is one event's match batch;
// the pool fans jobs out to workers, runs both engines, and collects the
// finished tables for retrieval after shutdown.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/scouthub/rating-engine/internal/logic"
	"github.com/scouthub/rating-engine/internal/models"
)

// Prometheus metrics
var (
	jobsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rating_jobs_queued_total",
		Help: "Total number of rating jobs accepted by the pool",
	})

	jobsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rating_jobs_processed_total",
		Help: "Total number of rating jobs completed by workers",
	})

	jobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rating_jobs_dropped_total",
		Help: "Total number of rating jobs rejected after shutdown began",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rating_worker_queue_depth",
		Help: "Current depth of the rating job queue",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rating_job_duration_seconds",
		Help:    "Time spent computing both rating tables for one event",
		Buckets: prometheus.DefBuckets,
	})
)

// Job is one event's worth of matches to rate.
type Job struct {
	ID       uuid.UUID
	EventKey string
	Matches  []models.MatchRecord
}

// Result carries the finished tables for one job.
type Result struct {
	JobID    uuid.UUID
	EventKey string
	EPA      models.EPATable
	OPR      models.OPRTable
	Elapsed  time.Duration
}

// PoolConfig configures the rating pool.
type PoolConfig struct {
	WorkerCount int
	QueueSize   int
	EPA         logic.EPAService
	OPR         logic.OPRService
	Logger      *zap.Logger
}

// Pool fans rating jobs out to a fixed set of workers. Results accumulate
// in memory; call Stop to drain the queue, then Results to read them.
type Pool struct {
	config   PoolConfig
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	results map[string]Result
}

// NewPool creates a rating worker pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		config:   cfg,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
		results:  make(map[string]Result),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Infow("Rating pool started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
	)
}

// Stop closes the queue and waits for workers to drain it. Jobs already
// queued are still computed.
func (p *Pool) Stop() {
	p.cancel()
	close(p.jobQueue)
	p.wg.Wait()
	queueDepth.Set(0)
	p.logger.Info("Rating pool stopped")
}

// Enqueue submits one event's matches for rating. Returns false once
// shutdown has begun.
func (p *Pool) Enqueue(eventKey string, matches []models.MatchRecord) bool {
	job := Job{
		ID:       uuid.New(),
		EventKey: eventKey,
		Matches:  matches,
	}

	// Protect against sending on a closed queue during shutdown.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warnw("Failed to enqueue rating job (pool stopped)", "event", eventKey)
			jobsDropped.Inc()
		}
	}()

	select {
	case p.jobQueue <- job:
		jobsQueued.Inc()
		queueDepth.Set(float64(len(p.jobQueue)))
		return true
	case <-p.ctx.Done():
		jobsDropped.Inc()
		return false
	}
}

// Results returns the finished tables keyed by event. Call after Stop.
func (p *Pool) Results() map[string]Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Result, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		queueDepth.Set(float64(len(p.jobQueue)))
		start := time.Now()

		result := Result{
			JobID:    job.ID,
			EventKey: job.EventKey,
			EPA:      p.config.EPA.CalculateEPA(job.Matches),
			OPR:      p.config.OPR.CalculateOPR(job.Matches),
		}
		result.Elapsed = time.Since(start)

		p.mu.Lock()
		p.results[job.EventKey] = result
		p.mu.Unlock()

		jobsProcessed.Inc()
		jobDuration.Observe(result.Elapsed.Seconds())
		p.logger.Infow("Rating job complete",
			"worker", id,
			"job", job.ID,
			"event", job.EventKey,
			"matches", len(job.Matches),
			"duration", result.Elapsed,
		)
	}
}
