package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/nvoss/needforge/pkg/models"
)

// Config represents the complete application configuration
type Config struct {
	Elicitation ElicitationConfig      `toml:"elicitation"`
	Models      map[string]ModelConfig `toml:"models"`
	Prompts     PromptTemplates        `toml:"prompts"`
	Questions   QuestionsConfig        `toml:"questions"`
	Pricing     PricingConfig          `toml:"pricing"`
	HuggingFace HuggingFaceConfig      `toml:"huggingface"`
}

// ElicitationConfig holds study-level settings: what product is being
// researched and how the pipeline should execute.
type ElicitationConfig struct {
	Product             string          `toml:"product"`
	DesignContext       string          `toml:"design_context"`
	UnitCount           int             `toml:"unit_count"`
	MaxUnits            int             `toml:"max_units"`            // Upper bound for unit_count validation (default 5)
	Strategy            models.Strategy `toml:"strategy"`             // serial | parallel
	Concurrency         int             `toml:"concurrency"`          // Parallel strategy: max concurrent backend calls (0 = unbounded)
	OutputDir           string          `toml:"output_dir"`
	SaveIntermediate    bool            `toml:"save_intermediate"`    // Write per-stage JSON artifacts as the run progresses
	Followups           bool            `toml:"followups"`            // Embed prior Q&A as context for later interview questions
	EnableCheckpointing bool            `toml:"enable_checkpointing"`
	CheckpointInterval  int             `toml:"checkpoint_interval"`  // Save checkpoint every N completed units (default 1)
	ResumeFromSession   string          `toml:"resume_from_session"`  // Session directory to resume from (e.g., "session_2026-08-26T12-34-56")
}

// ModelConfig represents configuration for a single model endpoint
type ModelConfig struct {
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	TopP               float64 `toml:"top_p"`
	MaxOutputTokens    int     `toml:"max_output_tokens"`
	ContextSize        int     `toml:"context_size"`
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"`
	MaxRetries         int     `toml:"max_retries"`           // Optional: max retry attempts (default 3)
	UseJSONMode        bool    `toml:"use_json_mode"`         // Structured output mode (useful for the extraction model)
}

// PromptTemplates holds all customizable prompt templates
type PromptTemplates struct {
	PersonaGeneration    string `toml:"persona_generation"`
	ExperienceSimulation string `toml:"experience_simulation"`
	Interview            string `toml:"interview"`
	NeedExtraction       string `toml:"need_extraction"`
}

// QuestionsConfig controls where the interview question set comes from.
// Inline questions win over the file; with neither set the embedded
// default question set is used.
type QuestionsConfig struct {
	File   string   `toml:"file"` // YAML file with a top-level "questions" list
	Inline []string `toml:"inline"`
}

// PricingConfig points at an optional per-model price table override.
type PricingConfig struct {
	File string `toml:"file"` // YAML file mapping model substrings to input/output rates
}

// HuggingFaceConfig holds Hugging Face Hub settings
type HuggingFaceConfig struct {
	RepoID string `toml:"repo_id"`
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys          map[string]string
	HuggingFaceToken string
}

// Model roles the pipeline stages resolve against the [models.*] tables.
const (
	ModelRoleAgent      = "agent"
	ModelRoleInterview  = "interview"
	ModelRoleExtraction = "extraction"
)

const (
	// MaxConcurrency is the maximum allowed concurrency
	MaxConcurrency = 1024
	// DefaultMaxUnits bounds unit_count when max_units is not configured
	DefaultMaxUnits = 5
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Elicitation.Product == "" {
		return fmt.Errorf("elicitation.product is required")
	}
	if c.Elicitation.DesignContext == "" {
		return fmt.Errorf("elicitation.design_context is required")
	}

	if c.Elicitation.MaxUnits < 1 {
		c.Elicitation.MaxUnits = DefaultMaxUnits
	}
	if err := ValidateUnitCount(c.Elicitation.UnitCount, c.Elicitation.MaxUnits); err != nil {
		return err
	}

	switch c.Elicitation.Strategy {
	case models.StrategySerial, models.StrategyParallel:
	default:
		return fmt.Errorf("elicitation.strategy must be %q or %q (got %q)",
			models.StrategySerial, models.StrategyParallel, c.Elicitation.Strategy)
	}

	if c.Elicitation.Concurrency < 0 {
		return fmt.Errorf("elicitation.concurrency must not be negative (got %d)", c.Elicitation.Concurrency)
	}
	if c.Elicitation.Concurrency > MaxConcurrency {
		return fmt.Errorf("elicitation.concurrency must not exceed %d (got %d)", MaxConcurrency, c.Elicitation.Concurrency)
	}
	if c.Elicitation.CheckpointInterval < 1 {
		c.Elicitation.CheckpointInterval = 1
	}

	// The agent model is required; interview and extraction fall back to it
	agentModel, ok := c.Models[ModelRoleAgent]
	if !ok {
		return fmt.Errorf("models.agent is required")
	}
	if err := validateModelConfig(ModelRoleAgent, agentModel); err != nil {
		return err
	}

	for _, role := range []string{ModelRoleInterview, ModelRoleExtraction} {
		mc, ok := c.Models[role]
		if !ok {
			fmt.Fprintf(os.Stderr, "WARNING: models.%s not configured - using models.agent for %s calls\n", role, role)
			c.Models[role] = agentModel
			continue
		}
		if err := validateModelConfig(role, mc); err != nil {
			return err
		}
	}

	// Validate prompt templates (defaults are applied before Validate runs)
	if c.Prompts.PersonaGeneration == "" {
		return fmt.Errorf("prompts.persona_generation is required")
	}
	if c.Prompts.ExperienceSimulation == "" {
		return fmt.Errorf("prompts.experience_simulation is required")
	}
	if c.Prompts.Interview == "" {
		return fmt.Errorf("prompts.interview is required")
	}
	if c.Prompts.NeedExtraction == "" {
		return fmt.Errorf("prompts.need_extraction is required")
	}

	return nil
}

// ValidateUnitCount checks a requested unit count against the configured
// bound. Exposed so the job manager can reject API requests with the same
// rule before a job record is created.
func ValidateUnitCount(unitCount, maxUnits int) error {
	if maxUnits < 1 {
		maxUnits = DefaultMaxUnits
	}
	if unitCount < 1 {
		return fmt.Errorf("elicitation.unit_count must be at least 1 (got %d)", unitCount)
	}
	if unitCount > maxUnits {
		return fmt.Errorf("elicitation.unit_count must not exceed %d (got %d)", maxUnits, unitCount)
	}
	return nil
}

func validateModelConfig(name string, mc ModelConfig) error {
	if mc.BaseURL == "" {
		return fmt.Errorf("models.%s.base_url is required", name)
	}
	if mc.ModelName == "" {
		return fmt.Errorf("models.%s.model_name is required", name)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("models.%s.temperature must be between 0 and 2", name)
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("models.%s.top_p must be between 0 and 1", name)
	}
	if mc.MaxOutputTokens < 1 {
		return fmt.Errorf("models.%s.max_output_tokens must be at least 1", name)
	}
	if mc.ContextSize < 1 {
		return fmt.Errorf("models.%s.context_size must be at least 1", name)
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("models.%s.rate_limit_per_minute must be at least 1", name)
	}
	if mc.MaxOutputTokens > mc.ContextSize {
		return fmt.Errorf("models.%s.max_output_tokens (%d) must not exceed context_size (%d)", name, mc.MaxOutputTokens, mc.ContextSize)
	}
	return nil
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Load generic API key (provider-agnostic)
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	// Load provider-specific API keys (optional, override generic)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		secrets.APIKeys["gemini"] = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		secrets.APIKeys["anthropic"] = key
	}

	// Load Hugging Face token
	secrets.HuggingFaceToken = os.Getenv("HUGGING_FACE_TOKEN")

	return secrets, nil
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	// Try to match common provider domains (provider-specific keys)
	if strings.Contains(baseURL, "openai.com") {
		if key := s.APIKeys["openai"]; key != "" {
			return key
		}
	}
	if strings.Contains(baseURL, "googleapis.com") || strings.Contains(baseURL, "generativelanguage") {
		if key := s.APIKeys["gemini"]; key != "" {
			return key
		}
	}
	if strings.Contains(baseURL, "anthropic.com") {
		if key := s.APIKeys["anthropic"]; key != "" {
			return key
		}
	}

	// Fall back to generic API_KEY for any OpenAI-compatible provider
	if key := s.APIKeys["generic"]; key != "" {
		return key
	}

	// If no key found, return empty (could be local server without auth)
	return ""
}

// HasAnyAPIKey reports whether at least one backend credential is present.
// A job must not start without one.
func (s *Secrets) HasAnyAPIKey() bool {
	for _, key := range s.APIKeys {
		if key != "" {
			return true
		}
	}
	return false
}
