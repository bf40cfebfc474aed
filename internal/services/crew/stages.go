package crew

import (
	"github.com/ternarybob/swarmcrew/internal/models"
)

// Fixed progress percentages, one per protocol point
const (
	ProgressRouting    = 10
	ProgressProcessing = 40
	ProgressQA         = 70
	ProgressComplete   = 100
)

// SystemAgentID labels the completion update, which no crew member emits
const SystemAgentID = "system"

// Stage describes one fixed pipeline step. Build is a pure function of the
// ticket text and the previous stage's output (empty for the first stage).
type Stage struct {
	Role          models.AgentRole
	TaskName      string
	ProgressStage models.ProgressStage
	AgentID       string
	Message       string
	Progress      int
	Build         func(ticket, prior string) models.AgentTask
}

// Stages returns the three crew stages in execution order
func Stages() []Stage {
	return []Stage{
		{
			Role:          models.AgentRoleRouter,
			TaskName:      models.TaskTicketClassification,
			ProgressStage: models.ProgressStageRouting,
			AgentID:       string(models.AgentRoleRouter),
			Message:       "Analyzing and classifying the support ticket",
			Progress:      ProgressRouting,
			Build:         classificationTask,
		},
		{
			Role:          models.AgentRoleWorker,
			TaskName:      models.TaskIssueResolution,
			ProgressStage: models.ProgressStageProcessing,
			AgentID:       string(models.AgentRoleWorker),
			Message:       "Resolving the customer issue",
			Progress:      ProgressProcessing,
			Build:         resolutionTask,
		},
		{
			Role:          models.AgentRoleQA,
			TaskName:      models.TaskQualityAssurance,
			ProgressStage: models.ProgressStageQA,
			AgentID:       string(models.AgentRoleQA),
			Message:       "Validating response quality",
			Progress:      ProgressQA,
			Build:         reviewTask,
		},
	}
}

// section wraps text in the delimiter block used by every stage context
func section(label, body string) string {
	return label + ":\n---\n" + body + "\n---"
}

func classificationTask(ticket, _ string) models.AgentTask {
	return models.AgentTask{
		Context: section("CUSTOMER SUPPORT TICKET", ticket),
		Description: `Analyze and classify the customer support ticket above.

Your task:
1. Identify the primary issue type (technical, billing, general inquiry, complaint, feature request)
2. Assess the urgency level (low, medium, high, critical)
3. Determine the complexity (simple, moderate, complex)
4. Extract key details that will help the resolution specialist
5. Provide routing recommendation

Output a structured classification with all the above elements.`,
		ExpectedOutput: `A structured classification containing:
- Issue Type: [type]
- Urgency: [level]
- Complexity: [level]
- Key Details: [bullet points]
- Routing Recommendation: [recommendation]`,
	}
}

func resolutionTask(ticket, classification string) models.AgentTask {
	return models.AgentTask{
		Context: section("ORIGINAL TICKET", ticket) + "\n\n" + section("CLASSIFICATION", classification),
		Description: `Resolve the customer support ticket above based on the classification.

Your task:
1. Address the customer's primary concern directly
2. Provide clear, step-by-step instructions if applicable
3. Include any relevant information or resources
4. Anticipate follow-up questions and address them proactively
5. Maintain a professional, empathetic, and helpful tone

Create a complete response that fully resolves the customer's issue.`,
		ExpectedOutput: `A complete customer support response that:
- Acknowledges the customer's issue
- Provides a clear solution or answer
- Includes step-by-step instructions if needed
- Offers additional helpful information
- Ends with a professional closing`,
	}
}

func reviewTask(ticket, proposed string) models.AgentTask {
	return models.AgentTask{
		Context: section("ORIGINAL TICKET", ticket) + "\n\n" + section("PROPOSED RESPONSE", proposed),
		Description: `Review and validate the proposed customer support response above.

Your task:
1. Verify the response accurately addresses the customer's issue
2. Check for factual accuracy and completeness
3. Evaluate the tone (professional, empathetic, helpful)
4. Identify any missing information or potential improvements
5. Ensure the response is clear and easy to understand

If the response meets quality standards, approve it.
If improvements are needed, provide the corrected version.`,
		ExpectedOutput: `Either:
- APPROVED: [original response] (if quality standards are met)
- REVISED: [improved response] (if changes were needed)

Include a brief quality assessment summary.`,
	}
}
