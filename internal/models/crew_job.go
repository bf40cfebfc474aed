// -----------------------------------------------------------------------
// Crew Job - Input and output value objects for the support pipeline
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AgentRole identifies which crew member produced a stage result
type AgentRole string

const (
	AgentRoleRouter AgentRole = "router"
	AgentRoleWorker AgentRole = "worker"
	AgentRoleQA     AgentRole = "qa"
)

// ProgressStage is the stage label carried by a ProgressUpdate
type ProgressStage string

const (
	ProgressStageRouting    ProgressStage = "routing"
	ProgressStageProcessing ProgressStage = "processing"
	ProgressStageQA         ProgressStage = "qa"
	ProgressStageComplete   ProgressStage = "complete"
)

// Task names recorded on each StageResult
const (
	TaskTicketClassification = "ticket_classification"
	TaskIssueResolution      = "issue_resolution"
	TaskQualityAssurance     = "quality_assurance"
)

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JobInput identifies one unit of work submitted to the crew.
// JobID is the correlation key for every progress and result event.
type JobInput struct {
	JobID        string `json:"job_id" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description" validate:"required"`
	Requirements string `json:"requirements"`
	SwarmID      string `json:"swarm_id"`
	CallbackURL  string `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// Validate checks the boundary invariants (job_id, title and description present).
func (j *JobInput) Validate() error {
	if err := validate.Struct(j); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid job input: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid job input: %w", err)
	}
	return nil
}

// TicketContent renders the ticket text handed to the first stage.
// Fields are concatenated verbatim; requirements are appended only when set.
func (j *JobInput) TicketContent() string {
	content := j.Title + "\n\n" + j.Description
	if j.Requirements != "" {
		content += "\n\nRequirements: " + j.Requirements
	}
	return content
}

// StageResult records one completed stage. Created once, after the agent
// call returns, and never modified afterwards.
type StageResult struct {
	AgentRole       AgentRole `json:"agent_role"`
	AgentAddress    string    `json:"agent_address"`
	TaskName        string    `json:"task_name"`
	Output          string    `json:"output"`
	TokensUsed      int       `json:"tokens_used"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
}

// JobResult is the terminal outcome of one job, emitted exactly once.
// StageResults holds the stages completed before any failure, in execution order.
type JobResult struct {
	JobID        string        `json:"job_id"`
	Success      bool          `json:"success"`
	FinalOutput  string        `json:"final_output"`
	StageResults []StageResult `json:"stage_results"`
	TotalCostUSD float64       `json:"total_cost_usd"`
	ResultHash   string        `json:"result_hash"`
}

// ProgressUpdate is an ephemeral progress event for one job
type ProgressUpdate struct {
	JobID    string        `json:"job_id"`
	Stage    ProgressStage `json:"stage"`
	AgentID  string        `json:"agent_id"`
	Message  string        `json:"message"`
	Progress int           `json:"progress"`
}

// AgentTask is what a stage asks its agent to do.
// Context carries the delimited source material (ticket, prior output);
// Description carries the instructions; ExpectedOutput describes the answer shape.
type AgentTask struct {
	Description    string `json:"description"`
	Context        string `json:"context"`
	ExpectedOutput string `json:"expected_output"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// QueuedResponse acknowledges a deferred job
type QueuedResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}
