package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vipbot/internal/jobs"
	"vipbot/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// SchedulerConfig sets the job intervals.
type SchedulerConfig struct {
	SweepInterval time.Duration
	EvictInterval time.Duration
}

// JobScheduler runs the background jobs: the expiry sweep and intake eviction.
type JobScheduler struct {
	scheduler gocron.Scheduler
	expiry    *jobs.ExpiryService
	intake    services.IntakeService
	config    SchedulerConfig
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(expiry *jobs.ExpiryService, intake services.IntakeService, cfg SchedulerConfig) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		scheduler: scheduler,
		expiry:    expiry,
		intake:    intake,
		config:    cfg,
		jobs:      make(map[string]gocron.Job),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := js.registerJobs(); err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	log.Info().Int("jobs", len(js.jobs)).Msg("Starting background job scheduler")
	js.scheduler.Start()
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Info().Msg("Stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	js.mu.Lock()
	defer js.mu.Unlock()

	// The first sweep runs one full interval after start.
	sweepJob, err := js.scheduler.NewJob(
		gocron.DurationJob(js.config.SweepInterval),
		gocron.NewTask(js.expiry.RunOnce, js.ctx),
		gocron.WithName("expiry-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create expiry sweep job: %w", err)
	}
	js.jobs["expiry-sweep"] = sweepJob

	if js.intake != nil && js.config.EvictInterval > 0 {
		evictJob, err := js.scheduler.NewJob(
			gocron.DurationJob(js.config.EvictInterval),
			gocron.NewTask(js.evictStaleIntakes, js.ctx),
			gocron.WithName("intake-eviction"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("create intake eviction job: %w", err)
		}
		js.jobs["intake-eviction"] = evictJob
	}
	return nil
}

// evictStaleIntakes drops abandoned purchase flows.
func (js *JobScheduler) evictStaleIntakes(ctx context.Context) {
	n, err := js.intake.EvictExpired(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Intake eviction failed")
		return
	}
	if n > 0 {
		log.Info().Int("evicted", n).Msg("Evicted abandoned intakes")
	}
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	status := make(map[string]interface{})
	status["total_jobs"] = len(js.jobs)
	next := make(map[string]string, len(js.jobs))
	for name, job := range js.jobs {
		if at, err := job.NextRun(); err == nil {
			next[name] = at.UTC().Format(time.RFC3339)
		}
	}
	status["next_runs"] = next
	return status
}
