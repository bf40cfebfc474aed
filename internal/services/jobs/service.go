// -----------------------------------------------------------------------
// Job Service - runs crew jobs inline or on the worker pool
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/interfaces"
	"github.com/ternarybob/swarmcrew/internal/metrics"
	"github.com/ternarybob/swarmcrew/internal/models"
	"github.com/ternarybob/swarmcrew/internal/services/crew"
	"github.com/ternarybob/swarmcrew/internal/services/progress"
	"github.com/ternarybob/swarmcrew/internal/services/workers"
)

// ReporterFactory selects the progress reporter for a job
type ReporterFactory interface {
	ForJob(callbackURL string) progress.Reporter
}

// DelivererFactory selects where a deferred job's result goes
type DelivererFactory interface {
	ForJob(callbackURL string) interfaces.ResultDeliverer
}

// Service runs support crew jobs. Each job gets its own crew and reporter,
// so concurrent jobs share nothing but the agent.
type Service struct {
	agent        interfaces.Agent
	pool         *workers.Pool
	reporters    ReporterFactory
	deliverers   DelivererFactory
	addresses    crew.AgentAddresses
	stageTimeout time.Duration
	clock        clockwork.Clock
	logger       arbor.ILogger
}

// NewService creates a job service. crewConfig supplies the stage deadline and
// role addresses applied to every job.
func NewService(
	agent interfaces.Agent,
	pool *workers.Pool,
	reporters ReporterFactory,
	deliverers DelivererFactory,
	crewConfig common.CrewConfig,
	logger arbor.ILogger,
) (*Service, error) {
	if agent == nil {
		return nil, crew.ErrNoAgent
	}

	stageTimeout, err := common.ParseDuration(crewConfig.StageTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid crew.stage_timeout: %w", err)
	}

	addresses := crew.DefaultAgentAddresses()
	for role, address := range crewConfig.AgentAddresses {
		addresses[models.AgentRole(role)] = address
	}

	if pool != nil {
		metrics.TrackPool(func() (int64, uint64) {
			return pool.Running(), pool.Waiting()
		})
	}

	return &Service{
		agent:        agent,
		pool:         pool,
		reporters:    reporters,
		deliverers:   deliverers,
		addresses:    addresses,
		stageTimeout: stageTimeout,
		clock:        clockwork.NewRealClock(),
		logger:       logger,
	}, nil
}

// Execute runs job to completion and returns its result.
// Progress for the job goes to its callback URL or the configured transport.
func (s *Service) Execute(ctx context.Context, job *models.JobInput) *models.JobResult {
	reporter := s.reporterFor(job)
	result := s.run(ctx, job, reporter)
	if reporter != nil {
		// Let queued progress drain without holding the caller's response
		common.SafeGo(s.logger, "progress-close", reporter.Close)
	}
	return result
}

// Enqueue schedules job on the worker pool and returns immediately.
// The result is handed to the job's deliverer when the crew finishes.
func (s *Service) Enqueue(job *models.JobInput) error {
	if s.pool == nil {
		return workers.ErrPoolStopped
	}

	metrics.AsyncJobsInflight.Inc()
	err := s.pool.Submit("crew-job-"+job.JobID, func(ctx context.Context) {
		defer metrics.AsyncJobsInflight.Dec()
		s.runDeferred(ctx, job)
	})
	if err != nil {
		metrics.AsyncJobsInflight.Dec()
		s.logger.Warn().
			Err(err).
			Str("job_id", job.JobID).
			Msg("Job refused by worker pool")
		return err
	}

	s.logger.Info().
		Str("job_id", job.JobID).
		Str("swarm_id", job.SwarmID).
		Msg("Job queued for processing")
	return nil
}

// Shutdown waits for queued and running deferred jobs
func (s *Service) Shutdown(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Shutdown(ctx)
}

func (s *Service) runDeferred(ctx context.Context, job *models.JobInput) {
	reporter := s.reporterFor(job)
	result := s.run(ctx, job, reporter)
	if reporter != nil {
		reporter.Close()
	}

	deliverer := s.deliverers.ForJob(job.CallbackURL)
	if deliverer == nil {
		s.logger.Info().
			Str("job_id", job.JobID).
			Bool("success", result.Success).
			Msg("Deferred job finished with no result destination")
		return
	}

	// Deliver even if the pool context was cancelled during shutdown
	if err := deliverer.Deliver(context.WithoutCancel(ctx), result); err != nil {
		s.logger.Warn().
			Err(err).
			Str("job_id", job.JobID).
			Msg("Failed to deliver job result")
		return
	}

	s.logger.Info().
		Str("job_id", job.JobID).
		Bool("success", result.Success).
		Msg("Job result delivered")
}

func (s *Service) run(ctx context.Context, job *models.JobInput, reporter progress.Reporter) *models.JobResult {
	opts := []crew.Option{
		crew.WithAgentAddresses(s.addresses),
		crew.WithStageTimeout(s.stageTimeout),
		crew.WithClock(s.clock),
	}
	if reporter != nil {
		opts = append(opts, crew.WithProgressReporter(reporter))
	}

	c, err := crew.New(s.agent, s.logger, opts...)
	if err != nil {
		// agent is checked in NewService
		return &models.JobResult{
			JobID:        job.JobID,
			FinalOutput:  crew.ErrorOutputPrefix + err.Error(),
			StageResults: []models.StageResult{},
			ResultHash:   crew.ResultHash("error:" + err.Error()),
		}
	}

	return c.Execute(ctx, job)
}

func (s *Service) reporterFor(job *models.JobInput) progress.Reporter {
	if s.reporters == nil {
		return nil
	}
	return s.reporters.ForJob(job.CallbackURL)
}
