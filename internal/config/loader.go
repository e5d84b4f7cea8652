package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse TOML
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Additional input security validation
	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	// Load secrets from environment
	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &cfg, secrets, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Models == nil {
		cfg.Models = make(map[string]ModelConfig)
	}

	if cfg.Elicitation.UnitCount == 0 {
		cfg.Elicitation.UnitCount = 3
	}
	if cfg.Elicitation.MaxUnits == 0 {
		cfg.Elicitation.MaxUnits = DefaultMaxUnits
	}
	if cfg.Elicitation.Strategy == "" {
		cfg.Elicitation.Strategy = "serial"
	}
	if cfg.Elicitation.OutputDir == "" {
		cfg.Elicitation.OutputDir = "output"
	}
	if cfg.Elicitation.CheckpointInterval == 0 {
		cfg.Elicitation.CheckpointInterval = 1
	}

	// Apply defaults for each model
	for name, model := range cfg.Models {
		if model.Temperature == 0 {
			model.Temperature = 0.7
		}
		if model.TopP == 0 {
			model.TopP = 1.0
		}
		if model.MaxOutputTokens == 0 {
			model.MaxOutputTokens = 4096
		}
		if model.ContextSize == 0 {
			model.ContextSize = 16384
		}
		if model.RateLimitPerMinute == 0 {
			model.RateLimitPerMinute = 60
		}
		// NOTE: in TOML we can't distinguish 0 from unset, so unset (0)
		// defaults to 3 and -1 means no retries beyond the first attempt
		if model.MaxRetries == 0 {
			model.MaxRetries = 3
		}
		cfg.Models[name] = model
	}

	// Apply default templates if not provided
	if cfg.Prompts.PersonaGeneration == "" {
		cfg.Prompts.PersonaGeneration = GetDefaultPersonaTemplate()
	}
	if cfg.Prompts.ExperienceSimulation == "" {
		cfg.Prompts.ExperienceSimulation = GetDefaultExperienceTemplate()
	}
	if cfg.Prompts.Interview == "" {
		cfg.Prompts.Interview = GetDefaultInterviewTemplate()
	}
	if cfg.Prompts.NeedExtraction == "" {
		cfg.Prompts.NeedExtraction = GetDefaultExtractionTemplate()
	}
}

// questionFile is the YAML shape of an interview question file.
type questionFile struct {
	Questions []string `yaml:"questions"`
}

// LoadQuestions resolves the interview question set: inline questions win,
// then the configured file, then the embedded default set.
func (c *Config) LoadQuestions() ([]string, error) {
	if len(c.Questions.Inline) > 0 {
		return c.Questions.Inline, nil
	}

	if c.Questions.File != "" {
		data, err := os.ReadFile(c.Questions.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read question file: %w", err)
		}
		var qf questionFile
		if err := yaml.Unmarshal(data, &qf); err != nil {
			return nil, fmt.Errorf("failed to parse question file: %w", err)
		}
		if len(qf.Questions) == 0 {
			return nil, fmt.Errorf("question file %s contains no questions", c.Questions.File)
		}
		return qf.Questions, nil
	}

	return GetDefaultInterviewQuestions(), nil
}
