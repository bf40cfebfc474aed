package common

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Logging     LoggingConfig  `toml:"logging"`
	LLM         LLMConfig      `toml:"llm"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Claude      ClaudeConfig   `toml:"claude"`
	Crew        CrewConfig     `toml:"crew"`
	Callback    CallbackConfig `toml:"callback"`
	NATS        NATSConfig     `toml:"nats"`
	Workers     WorkersConfig  `toml:"workers"`
	Metrics     MetricsConfig  `toml:"metrics"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=1,lte=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider behind every crew agent
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=claude gemini"`
	MaxRetries      int         `toml:"max_retries" validate:"gte=0"` // Retries for rate-limited provider calls (0 disables)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout" validate:"duration"`    // Per-request timeout as duration string
	RateLimit   string  `toml:"rate_limit" validate:"duration"` // Minimum interval between requests
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens" validate:"gte=0"`
	Timeout     string  `toml:"timeout" validate:"duration"`
	RateLimit   string  `toml:"rate_limit" validate:"duration"`
	Temperature float32 `toml:"temperature"`
}

// CrewConfig contains pipeline settings applied by the service boundary
type CrewConfig struct {
	StageTimeout   string            `toml:"stage_timeout" validate:"duration"`                                   // Deadline per agent call, "0" disables
	AgentAddresses map[string]string `toml:"agent_addresses" validate:"dive,keys,oneof=router worker qa,endkeys"` // role -> wallet address
}

// CallbackConfig controls progress and result delivery over HTTP
type CallbackConfig struct {
	URL             string `toml:"url" validate:"omitempty,url"`         // Default destination when a job has no callback_url
	ProgressTimeout string `toml:"progress_timeout" validate:"duration"` // Per progress POST
	ResultTimeout   string `toml:"result_timeout" validate:"duration"`   // Per result POST
	QueueSize       int    `toml:"queue_size" validate:"gt=0"`           // Pending progress updates per job before dropping
}

// NATSConfig enables the NATS transport when URL is set
type NATSConfig struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// WorkersConfig sizes the pool that runs deferred jobs
type WorkersConfig struct {
	AsyncConcurrency int `toml:"async_concurrency" validate:"gt=0"`
	AsyncQueueSize   int `toml:"async_queue_size" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8000,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			MaxRetries:      3,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "2m",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-3-5-haiku-latest",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "0s",
			Temperature: 0.7,
		},
		Crew: CrewConfig{
			StageTimeout: "3m",
		},
		Callback: CallbackConfig{
			ProgressTimeout: "5s",
			ResultTimeout:   "10s",
			QueueSize:       16,
		},
		NATS: NATSConfig{
			SubjectPrefix: "swarmcrew.jobs",
		},
		Workers: WorkersConfig{
			AsyncConcurrency: 8,
			AsyncQueueSize:   256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env never overrides variables already present in the process environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SWARMCREW_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("SWARMCREW_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SWARMCREW_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("SWARMCREW_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SWARMCREW_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// LLM configuration
	if provider := os.Getenv("SWARMCREW_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if retries := os.Getenv("SWARMCREW_LLM_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.LLM.MaxRetries = r
		}
	}

	// Gemini configuration
	if model := os.Getenv("SWARMCREW_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if rateLimit := os.Getenv("SWARMCREW_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("SWARMCREW_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if model := os.Getenv("SWARMCREW_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("SWARMCREW_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if temperature := os.Getenv("SWARMCREW_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// Crew configuration
	if stageTimeout := os.Getenv("SWARMCREW_STAGE_TIMEOUT"); stageTimeout != "" {
		config.Crew.StageTimeout = stageTimeout
	}

	// Callback configuration
	if callbackURL := os.Getenv("SWARMCREW_CALLBACK_URL"); callbackURL != "" {
		config.Callback.URL = callbackURL
	}

	// NATS configuration
	if natsURL := os.Getenv("SWARMCREW_NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}

	// Worker configuration
	if concurrency := os.Getenv("SWARMCREW_ASYNC_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Workers.AsyncConcurrency = c
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves a provider API key.
// Resolution order: SWARMCREW_* env var -> vendor env var -> config value -> error.
func ResolveAPIKey(provider LLMProvider, configFallback string) (string, error) {
	envNames := map[LLMProvider][]string{
		LLMProviderClaude: {"SWARMCREW_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		LLMProviderGemini: {"SWARMCREW_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	for _, name := range envNames[provider] {
		if value := os.Getenv(name); value != "" {
			return value, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key for provider '%s' not found in environment or config", provider)
}

// ParseDuration parses a duration string, treating "" and "0" as zero
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration '%s': %w", value, err)
	}
	return d, nil
}

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their TOML keys and understands duration strings
func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		problems = append(problems, fmt.Sprintf("%s: invalid value '%v' (%s)", key, fe.Value(), rule))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}
