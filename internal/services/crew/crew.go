package crew

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/interfaces"
	"github.com/ternarybob/swarmcrew/internal/metrics"
	"github.com/ternarybob/swarmcrew/internal/models"
)

// ErrNoAgent is returned when a crew is built without an agent
var ErrNoAgent = errors.New("crew requires an agent")

// ErrorOutputPrefix starts the final output of every failed job
const ErrorOutputPrefix = "Error: "

// AgentAddresses maps each crew role to the wallet address credited with its work
type AgentAddresses map[models.AgentRole]string

// DefaultAgentAddresses returns the placeholder addresses used when a swarm
// does not configure its own
func DefaultAgentAddresses() AgentAddresses {
	return AgentAddresses{
		models.AgentRoleRouter: "0x1111111111111111111111111111111111111111",
		models.AgentRoleWorker: "0x2222222222222222222222222222222222222222",
		models.AgentRoleQA:     "0x3333333333333333333333333333333333333333",
	}
}

// Option configures a Crew
type Option func(*Crew)

// WithProgressReporter attaches the single progress listener for the job
func WithProgressReporter(reporter interfaces.ProgressReporter) Option {
	return func(c *Crew) { c.reporter = reporter }
}

// WithAgentAddresses overrides the role to address mapping
func WithAgentAddresses(addresses AgentAddresses) Option {
	return func(c *Crew) {
		if len(addresses) > 0 {
			c.addresses = addresses
		}
	}
}

// WithStageTimeout bounds each agent call; zero means no deadline
func WithStageTimeout(timeout time.Duration) Option {
	return func(c *Crew) { c.stageTimeout = timeout }
}

// WithClock replaces the clock used for stage timings
func WithClock(clock clockwork.Clock) Option {
	return func(c *Crew) { c.clock = clock }
}

// Crew runs the router, worker and QA stages for one job at a time.
// A Crew holds no state between Execute calls and may be shared by
// concurrent jobs as long as its reporter is job-agnostic.
type Crew struct {
	agent        interfaces.Agent
	reporter     interfaces.ProgressReporter
	addresses    AgentAddresses
	stageTimeout time.Duration
	clock        clockwork.Clock
	stages       []Stage
	logger       arbor.ILogger
}

// New creates a crew backed by the given agent
func New(agent interfaces.Agent, logger arbor.ILogger, opts ...Option) (*Crew, error) {
	if agent == nil {
		return nil, ErrNoAgent
	}

	c := &Crew{
		agent:     agent,
		addresses: DefaultAgentAddresses(),
		clock:     clockwork.NewRealClock(),
		stages:    Stages(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Execute runs all stages in order, threading each output into the next stage.
// It always returns a well-formed result: an agent failure stops the pipeline,
// keeps the stages completed so far and reports success=false.
func (c *Crew) Execute(ctx context.Context, job *models.JobInput) *models.JobResult {
	ticket := job.TicketContent()
	results := make([]models.StageResult, 0, len(c.stages))
	prior := ""

	c.logger.Info().
		Str("job_id", job.JobID).
		Str("swarm_id", job.SwarmID).
		Msg("Crew execution started")

	for _, stage := range c.stages {
		c.notify(models.ProgressUpdate{
			JobID:    job.JobID,
			Stage:    stage.ProgressStage,
			AgentID:  stage.AgentID,
			Message:  stage.Message,
			Progress: stage.Progress,
		})

		start := c.clock.Now()
		output, err := c.runStage(ctx, stage, stage.Build(ticket, prior))
		if err != nil {
			return c.fail(job, stage, results, err)
		}

		elapsed := c.clock.Since(start)
		if elapsed < 0 {
			elapsed = 0
		}
		metrics.StageDuration.WithLabelValues(stage.TaskName).Observe(elapsed.Seconds())

		results = append(results, models.StageResult{
			AgentRole:       stage.Role,
			AgentAddress:    c.addresses[stage.Role],
			TaskName:        stage.TaskName,
			Output:          output,
			TokensUsed:      0,
			ExecutionTimeMs: elapsed.Milliseconds(),
		})

		c.logger.Debug().
			Str("job_id", job.JobID).
			Str("task", stage.TaskName).
			Str("agent_role", string(stage.Role)).
			Dur("duration", elapsed).
			Int("output_length", len(output)).
			Msg("Crew stage completed")

		prior = output
	}

	c.notify(models.ProgressUpdate{
		JobID:    job.JobID,
		Stage:    models.ProgressStageComplete,
		AgentID:  SystemAgentID,
		Message:  "Job completed successfully",
		Progress: ProgressComplete,
	})

	result := &models.JobResult{
		JobID:        job.JobID,
		Success:      true,
		FinalOutput:  prior,
		StageResults: results,
		TotalCostUSD: EstimateCost(results),
		ResultHash:   ResultHash(prior),
	}

	metrics.JobsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	c.logger.Info().
		Str("job_id", job.JobID).
		Float64("total_cost_usd", result.TotalCostUSD).
		Str("result_hash", result.ResultHash).
		Msg("Crew execution completed")

	return result
}

// fail builds the terminal result for a job aborted at stage.
// Failed jobs are not billed: cost stays 0 even when earlier stages ran.
func (c *Crew) fail(job *models.JobInput, stage Stage, completed []models.StageResult, err error) *models.JobResult {
	message := err.Error()

	metrics.StageFailures.WithLabelValues(stage.TaskName).Inc()
	metrics.JobsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	c.logger.Error().
		Err(err).
		Str("job_id", job.JobID).
		Str("task", stage.TaskName).
		Int("completed_stages", len(completed)).
		Msg("Crew execution failed")

	return &models.JobResult{
		JobID:        job.JobID,
		Success:      false,
		FinalOutput:  ErrorOutputPrefix + message,
		StageResults: completed,
		TotalCostUSD: 0.0,
		ResultHash:   ResultHash("error:" + message),
	}
}

type stageOutcome struct {
	output string
	err    error
}

// runStage calls the agent once. Panics become errors and the stage deadline
// is enforced even when the agent ignores ctx.
func (c *Crew) runStage(ctx context.Context, stage Stage, task models.AgentTask) (string, error) {
	if c.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.stageTimeout)
		defer cancel()
	}

	done := make(chan stageOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageOutcome{err: fmt.Errorf("%s agent panicked: %v", stage.Role, r)}
			}
		}()
		output, err := c.agent.Respond(ctx, stage.Role, task)
		done <- stageOutcome{output: output, err: err}
	}()

	return awaitStage(ctx, stage, done)
}

// awaitStage waits for the agent or the stage context, whichever ends first.
// An answer that is already waiting when the deadline fires still counts.
func awaitStage(ctx context.Context, stage Stage, done <-chan stageOutcome) (string, error) {
	select {
	case outcome := <-done:
		return outcome.output, outcome.err
	case <-ctx.Done():
		select {
		case outcome := <-done:
			return outcome.output, outcome.err
		default:
		}
		return "", fmt.Errorf("%s stage aborted: %w", stage.TaskName, ctx.Err())
	}
}

// notify delivers a progress update without letting the reporter affect the job
func (c *Crew) notify(update models.ProgressUpdate) {
	if c.reporter == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().
				Str("job_id", update.JobID).
				Str("stage", string(update.Stage)).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Progress reporter panicked, update discarded")
		}
	}()

	c.reporter.Notify(update)
}
