package config

import (
	"os"
	"testing"
)

func validTestConfig() Config {
	return Config{
		Elicitation: ElicitationConfig{
			Product:       "Smart Kettle",
			DesignContext: "Kitchen appliances for elderly users",
			UnitCount:     3,
			MaxUnits:      5,
			Strategy:      "serial",
			Concurrency:   4,
		},
		Models: map[string]ModelConfig{
			"agent": {
				BaseURL:            "https://api.example.com/v1",
				ModelName:          "test-model",
				Temperature:        0.7,
				TopP:               1.0,
				MaxOutputTokens:    1024,
				ContextSize:        2048,
				RateLimitPerMinute: 60,
			},
			"extraction": {
				BaseURL:            "https://api.example.com/v1",
				ModelName:          "test-model-2",
				Temperature:        0.2,
				TopP:               1.0,
				MaxOutputTokens:    1024,
				ContextSize:        2048,
				RateLimitPerMinute: 60,
				UseJSONMode:        true,
			},
		},
		Prompts: PromptTemplates{
			PersonaGeneration:    "template1",
			ExperienceSimulation: "template2",
			Interview:            "template3",
			NeedExtraction:       "template4",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing product",
			mutate:  func(c *Config) { c.Elicitation.Product = "" },
			wantErr: true,
		},
		{
			name:    "missing design context",
			mutate:  func(c *Config) { c.Elicitation.DesignContext = "" },
			wantErr: true,
		},
		{
			name:    "zero unit count",
			mutate:  func(c *Config) { c.Elicitation.UnitCount = 0 },
			wantErr: true,
		},
		{
			name:    "unit count above max",
			mutate:  func(c *Config) { c.Elicitation.UnitCount = 6 },
			wantErr: true,
		},
		{
			name: "raised max_units allows more units",
			mutate: func(c *Config) {
				c.Elicitation.MaxUnits = 20
				c.Elicitation.UnitCount = 12
			},
			wantErr: false,
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Elicitation.Strategy = "hybrid" },
			wantErr: true,
		},
		{
			name:    "parallel strategy",
			mutate:  func(c *Config) { c.Elicitation.Strategy = "parallel" },
			wantErr: false,
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Elicitation.Concurrency = -1 },
			wantErr: true,
		},
		{
			name:    "concurrency too high",
			mutate:  func(c *Config) { c.Elicitation.Concurrency = MaxConcurrency + 1 },
			wantErr: true,
		},
		{
			name:    "missing agent model",
			mutate:  func(c *Config) { delete(c.Models, "agent") },
			wantErr: true,
		},
		{
			name:    "missing extraction template",
			mutate:  func(c *Config) { c.Prompts.NeedExtraction = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRoleFallback(t *testing.T) {
	cfg := validTestConfig()
	delete(cfg.Models, "interview")
	delete(cfg.Models, "extraction")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() error = %v", err)
	}

	agent := cfg.Models[ModelRoleAgent]
	for _, role := range []string{ModelRoleInterview, ModelRoleExtraction} {
		mc, ok := cfg.Models[role]
		if !ok {
			t.Fatalf("expected models.%s to be filled in from models.agent", role)
		}
		if mc.ModelName != agent.ModelName {
			t.Errorf("models.%s.model_name = %q, want %q", role, mc.ModelName, agent.ModelName)
		}
	}
}

func TestValidateUnitCount(t *testing.T) {
	tests := []struct {
		name      string
		unitCount int
		maxUnits  int
		wantErr   bool
	}{
		{name: "at lower bound", unitCount: 1, maxUnits: 5, wantErr: false},
		{name: "at upper bound", unitCount: 5, maxUnits: 5, wantErr: false},
		{name: "below lower bound", unitCount: 0, maxUnits: 5, wantErr: true},
		{name: "negative", unitCount: -3, maxUnits: 5, wantErr: true},
		{name: "above upper bound", unitCount: 6, maxUnits: 5, wantErr: true},
		{name: "zero max falls back to default", unitCount: 5, maxUnits: 0, wantErr: false},
		{name: "zero max still bounds", unitCount: 6, maxUnits: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnitCount(tt.unitCount, tt.maxUnits)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUnitCount(%d, %d) error = %v, wantErr %v",
					tt.unitCount, tt.maxUnits, err, tt.wantErr)
			}
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	// Set test environment variables
	if err := os.Setenv("OPENAI_API_KEY", "test-key-123"); err != nil {
		t.Fatalf("Failed to set OPENAI_API_KEY: %v", err)
	}
	if err := os.Setenv("API_KEY", "test-generic-key"); err != nil {
		t.Fatalf("Failed to set API_KEY: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("OPENAI_API_KEY")
		_ = os.Unsetenv("API_KEY")
	}()

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}

	if secrets.APIKeys["openai"] != "test-key-123" {
		t.Errorf("Expected OpenAI key to be 'test-key-123', got %s", secrets.APIKeys["openai"])
	}

	if secrets.APIKeys["generic"] != "test-generic-key" {
		t.Errorf("Expected generic key to be 'test-generic-key', got %s", secrets.APIKeys["generic"])
	}
}

func TestGetAPIKey(t *testing.T) {
	secrets := &Secrets{
		APIKeys: map[string]string{
			"openai":  "openai-key",
			"gemini":  "gemini-key",
			"generic": "generic-key",
		},
	}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "OpenAI URL",
			baseURL: "https://api.openai.com/v1",
			want:    "openai-key",
		},
		{
			name:    "Gemini URL",
			baseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
			want:    "gemini-key",
		},
		{
			name:    "Unknown URL falls back to generic",
			baseURL: "https://integrate.api.nvidia.com/v1",
			want:    "generic-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := secrets.GetAPIKey(tt.baseURL)
			if got != tt.want {
				t.Errorf("GetAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasAnyAPIKey(t *testing.T) {
	empty := &Secrets{APIKeys: map[string]string{}}
	if empty.HasAnyAPIKey() {
		t.Error("HasAnyAPIKey() = true for empty secrets")
	}

	blank := &Secrets{APIKeys: map[string]string{"generic": ""}}
	if blank.HasAnyAPIKey() {
		t.Error("HasAnyAPIKey() = true for blank key")
	}

	set := &Secrets{APIKeys: map[string]string{"generic": "k"}}
	if !set.HasAnyAPIKey() {
		t.Error("HasAnyAPIKey() = false with a key present")
	}
}
