package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/interfaces"
	"github.com/ternarybob/swarmcrew/internal/models"
	"github.com/ternarybob/swarmcrew/internal/services/llm"
)

// Generator produces model output for a prompt. Satisfied by *llm.ProviderFactory.
type Generator interface {
	GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error)
	DetectProvider(model string) llm.ProviderType
	CheckCredentials(provider llm.ProviderType) error
}

var _ interfaces.Agent = (*Service)(nil)

// Service answers crew tasks by prompting an LLM as the persona registered for each role.
// It implements interfaces.Agent.
type Service struct {
	generator Generator
	model     string
	personas  map[models.AgentRole]Persona
	logger    arbor.ILogger
}

// NewService creates an agent service with the default support personas registered.
// model may be empty to use the configured default provider and its default model.
func NewService(generator Generator, model string, logger arbor.ILogger) *Service {
	s := &Service{
		generator: generator,
		model:     model,
		personas:  make(map[models.AgentRole]Persona),
		logger:    logger,
	}

	for _, persona := range DefaultPersonas() {
		s.RegisterPersona(persona)
	}

	return s
}

// RegisterPersona adds or replaces the persona answering for a role
func (s *Service) RegisterPersona(persona Persona) {
	s.personas[persona.Role] = persona
	s.logger.Debug().
		Str("agent_role", string(persona.Role)).
		Str("title", persona.Title).
		Msg("Persona registered")
}

// Provider returns the provider every role is routed to
func (s *Service) Provider() llm.ProviderType {
	return s.generator.DetectProvider(s.model)
}

// CheckCredentials fails fast when the active provider has no API key
func (s *Service) CheckCredentials() error {
	return s.generator.CheckCredentials(s.Provider())
}

// Respond runs one task as the persona registered for role
func (s *Service) Respond(ctx context.Context, role models.AgentRole, task models.AgentTask) (string, error) {
	persona, ok := s.personas[role]
	if !ok {
		return "", fmt.Errorf("unknown agent role: %s", role)
	}

	startTime := time.Now()
	resp, err := s.generator.GenerateContent(ctx, &llm.ContentRequest{
		Prompt:            RenderPrompt(task),
		SystemInstruction: persona.SystemInstruction(),
		Model:             s.model,
	})
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("agent_role", string(role)).
			Dur("duration", duration).
			Msg("Agent call failed")
		return "", fmt.Errorf("%s agent failed: %w", role, err)
	}

	s.logger.Debug().
		Str("agent_role", string(role)).
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Int64("input_tokens", resp.InputTokens).
		Int64("output_tokens", resp.OutputTokens).
		Dur("duration", duration).
		Msg("Agent call completed")

	return resp.Text, nil
}

// RenderPrompt lays out a task as the user prompt: context first, then the
// instructions and the expected output shape.
func RenderPrompt(task models.AgentTask) string {
	var b strings.Builder
	if task.Context != "" {
		b.WriteString(task.Context)
		b.WriteString("\n\n")
	}
	b.WriteString(task.Description)
	if task.ExpectedOutput != "" {
		b.WriteString("\n\nExpected output:\n")
		b.WriteString(task.ExpectedOutput)
	}
	return b.String()
}
