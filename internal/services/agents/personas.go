package agents

import (
	"fmt"
	"strings"

	"github.com/ternarybob/swarmcrew/internal/models"
)

// Persona describes how one crew member presents itself to the model
type Persona struct {
	Role      models.AgentRole
	Title     string
	Goal      string
	Backstory string
}

// SystemInstruction renders the persona as the system prompt for every call made on its behalf
func (p Persona) SystemInstruction() string {
	return fmt.Sprintf("You are the %s.\n\nGoal: %s\n\n%s", p.Title, p.Goal, p.Backstory)
}

// RouterPersona classifies incoming tickets
func RouterPersona() Persona {
	return Persona{
		Role:  models.AgentRoleRouter,
		Title: "Support Ticket Router",
		Goal: "Accurately classify and route customer support tickets to ensure " +
			"efficient resolution by the appropriate specialist",
		Backstory: strings.Join([]string{
			"You are an expert support ticket classifier with years of experience in customer service operations.",
			"You excel at quickly understanding the nature of customer issues and determining the best path to resolution.",
			"You categorize tickets by urgency, complexity, and type (technical, billing, general inquiry, etc.).",
		}, " "),
	}
}

// WorkerPersona drafts the customer-facing resolution
func WorkerPersona() Persona {
	return Persona{
		Role:  models.AgentRoleWorker,
		Title: "Support Resolution Specialist",
		Goal: "Provide comprehensive, accurate, and helpful solutions to customer issues " +
			"while maintaining a professional and empathetic tone",
		Backstory: strings.Join([]string{
			"You are a seasoned customer support specialist with deep knowledge across technical troubleshooting, billing inquiries, and general product questions.",
			"You're known for your clear explanations, step-by-step guidance, and ability to resolve complex issues efficiently.",
			"You always aim to exceed customer expectations.",
		}, " "),
	}
}

// QAPersona reviews the drafted response before delivery
func QAPersona() Persona {
	return Persona{
		Role:  models.AgentRoleQA,
		Title: "Quality Assurance Reviewer",
		Goal: "Ensure all customer responses meet high quality standards for " +
			"accuracy, completeness, tone, and helpfulness",
		Backstory: strings.Join([]string{
			"You are a meticulous quality assurance specialist with expertise in customer communication.",
			"You review support responses to ensure they are accurate, complete, professionally worded, and truly address the customer's needs.",
			"You catch errors, suggest improvements, and ensure consistency with company standards.",
		}, " "),
	}
}

// DefaultPersonas returns the support crew personas
func DefaultPersonas() []Persona {
	return []Persona{RouterPersona(), WorkerPersona(), QAPersona()}
}
