package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateModelConfig(t *testing.T) {
	base := ModelConfig{
		BaseURL:            "https://api.example.com/v1",
		ModelName:          "test-model",
		Temperature:        0.7,
		TopP:               1.0,
		MaxOutputTokens:    1024,
		ContextSize:        2048,
		RateLimitPerMinute: 60,
	}

	tests := []struct {
		name   string
		mutate func(*ModelConfig)
		errMsg string // empty means no error expected
	}{
		{
			name:   "valid",
			mutate: func(m *ModelConfig) {},
		},
		{
			name:   "missing base_url",
			mutate: func(m *ModelConfig) { m.BaseURL = "" },
			errMsg: "base_url is required",
		},
		{
			name:   "missing model_name",
			mutate: func(m *ModelConfig) { m.ModelName = "" },
			errMsg: "model_name is required",
		},
		{
			name:   "temperature too high",
			mutate: func(m *ModelConfig) { m.Temperature = 2.5 },
			errMsg: "temperature must be between",
		},
		{
			name:   "negative temperature",
			mutate: func(m *ModelConfig) { m.Temperature = -0.1 },
			errMsg: "temperature must be between",
		},
		{
			name:   "top_p too high",
			mutate: func(m *ModelConfig) { m.TopP = 1.5 },
			errMsg: "top_p must be between",
		},
		{
			name:   "zero max_output_tokens",
			mutate: func(m *ModelConfig) { m.MaxOutputTokens = 0 },
			errMsg: "max_output_tokens must be at least 1",
		},
		{
			name:   "zero context_size",
			mutate: func(m *ModelConfig) { m.ContextSize = 0 },
			errMsg: "context_size must be at least 1",
		},
		{
			name:   "zero rate limit",
			mutate: func(m *ModelConfig) { m.RateLimitPerMinute = 0 },
			errMsg: "rate_limit_per_minute must be at least 1",
		},
		{
			name: "output tokens exceed context",
			mutate: func(m *ModelConfig) {
				m.MaxOutputTokens = 4096
				m.ContextSize = 2048
			},
			errMsg: "must not exceed context_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := base
			tt.mutate(&mc)
			err := validateModelConfig("agent", mc)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("validateModelConfig() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateModelConfig() expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validateModelConfig() error = %v, want substring %q", err, tt.errMsg)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		Elicitation: ElicitationConfig{
			Product:       "Test",
			DesignContext: "Test context",
		},
		Models: map[string]ModelConfig{
			"agent": {
				BaseURL:   "https://api.example.com/v1",
				ModelName: "test-model",
			},
		},
	}

	applyDefaults(&cfg)

	if cfg.Elicitation.UnitCount != 3 {
		t.Errorf("default unit_count = %d, want 3", cfg.Elicitation.UnitCount)
	}
	if cfg.Elicitation.MaxUnits != DefaultMaxUnits {
		t.Errorf("default max_units = %d, want %d", cfg.Elicitation.MaxUnits, DefaultMaxUnits)
	}
	if cfg.Elicitation.Strategy != "serial" {
		t.Errorf("default strategy = %q, want serial", cfg.Elicitation.Strategy)
	}
	if cfg.Elicitation.OutputDir != "output" {
		t.Errorf("default output_dir = %q, want output", cfg.Elicitation.OutputDir)
	}
	if cfg.Elicitation.CheckpointInterval != 1 {
		t.Errorf("default checkpoint_interval = %d, want 1", cfg.Elicitation.CheckpointInterval)
	}

	agent := cfg.Models["agent"]
	if agent.Temperature != 0.7 {
		t.Errorf("default temperature = %v, want 0.7", agent.Temperature)
	}
	if agent.TopP != 1.0 {
		t.Errorf("default top_p = %v, want 1.0", agent.TopP)
	}
	if agent.MaxOutputTokens != 4096 {
		t.Errorf("default max_output_tokens = %d, want 4096", agent.MaxOutputTokens)
	}
	if agent.ContextSize != 16384 {
		t.Errorf("default context_size = %d, want 16384", agent.ContextSize)
	}
	if agent.RateLimitPerMinute != 60 {
		t.Errorf("default rate_limit_per_minute = %d, want 60", agent.RateLimitPerMinute)
	}
	if agent.MaxRetries != 3 {
		t.Errorf("default max_retries = %d, want 3", agent.MaxRetries)
	}

	if cfg.Prompts.PersonaGeneration == "" {
		t.Error("expected default persona_generation template")
	}
	if cfg.Prompts.NeedExtraction == "" {
		t.Error("expected default need_extraction template")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[elicitation]
product = "Ergonomic Office Chair"
design_context = "Seating for people who work long hours at a desk"
unit_count = 2
strategy = "parallel"
concurrency = 4

[models.agent]
base_url = "https://api.example.com/v1"
model_name = "test-model"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, secrets, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Elicitation.Product != "Ergonomic Office Chair" {
		t.Errorf("product = %q", cfg.Elicitation.Product)
	}
	if cfg.Elicitation.Strategy != "parallel" {
		t.Errorf("strategy = %q, want parallel", cfg.Elicitation.Strategy)
	}
	// Interview and extraction roles should fall back to the agent model
	if cfg.Models[ModelRoleExtraction].ModelName != "test-model" {
		t.Errorf("extraction model = %q, want fallback to agent", cfg.Models[ModelRoleExtraction].ModelName)
	}
	if secrets == nil {
		t.Fatal("Load() returned nil secrets")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[elicitation\nbroken"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, _, err := Load(path); err == nil {
		t.Error("Load() expected parse error, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoadQuestions(t *testing.T) {
	t.Run("inline wins", func(t *testing.T) {
		cfg := Config{Questions: QuestionsConfig{
			Inline: []string{"What frustrated you most?"},
			File:   "does-not-exist.yaml",
		}}
		qs, err := cfg.LoadQuestions()
		if err != nil {
			t.Fatalf("LoadQuestions() error = %v", err)
		}
		if len(qs) != 1 || qs[0] != "What frustrated you most?" {
			t.Errorf("LoadQuestions() = %v", qs)
		}
	})

	t.Run("from file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "questions.yaml")
		content := "questions:\n  - \"First question?\"\n  - \"Second question?\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write questions: %v", err)
		}

		cfg := Config{Questions: QuestionsConfig{File: path}}
		qs, err := cfg.LoadQuestions()
		if err != nil {
			t.Fatalf("LoadQuestions() error = %v", err)
		}
		if len(qs) != 2 || qs[1] != "Second question?" {
			t.Errorf("LoadQuestions() = %v", qs)
		}
	})

	t.Run("empty file is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "questions.yaml")
		if err := os.WriteFile(path, []byte("questions: []\n"), 0644); err != nil {
			t.Fatalf("failed to write questions: %v", err)
		}

		cfg := Config{Questions: QuestionsConfig{File: path}}
		if _, err := cfg.LoadQuestions(); err == nil {
			t.Error("LoadQuestions() expected error for empty file, got nil")
		}
	})

	t.Run("defaults when nothing configured", func(t *testing.T) {
		cfg := Config{}
		qs, err := cfg.LoadQuestions()
		if err != nil {
			t.Fatalf("LoadQuestions() error = %v", err)
		}
		if len(qs) == 0 {
			t.Error("LoadQuestions() returned no default questions")
		}
	})
}
