package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the effective endpoints
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("SwarmCrew", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Bool("nats_enabled", config.NATS.URL != "").
		Bool("metrics_enabled", config.Metrics.Enabled).
		Msg("SwarmCrew agent service")
}
