package config

import (
	"fmt"
	"net/url"
	"unicode"
)

const (
	// MaxProductLength is the maximum allowed length for the product name
	MaxProductLength = 200

	// MaxDesignContextLength is the maximum allowed length for the design context
	MaxDesignContextLength = 2000

	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxQuestionLength is the maximum allowed length of one interview question
	MaxQuestionLength = 1000
)

// ValidateInputs performs additional security validation on user-controllable fields.
// This prevents potential DoS attacks, injection attacks, and other security issues.
func (c *Config) ValidateInputs() error {
	if err := ValidateStudyInputs(c.Elicitation.Product, c.Elicitation.DesignContext); err != nil {
		return err
	}

	// Validate model configurations
	for name, mc := range c.Models {
		if err := validateModelName(mc.ModelName, name); err != nil {
			return err
		}

		if err := validateBaseURL(mc.BaseURL, name); err != nil {
			return err
		}
	}

	// Validate template sizes
	if err := c.validateTemplateSizes(); err != nil {
		return err
	}

	// Validate inline questions
	for i, q := range c.Questions.Inline {
		if len(q) > MaxQuestionLength {
			return fmt.Errorf("questions.inline[%d] exceeds maximum length of %d characters (got %d)",
				i, MaxQuestionLength, len(q))
		}
		if containsControlChars(q) {
			return fmt.Errorf("questions.inline[%d] contains invalid control characters", i)
		}
	}

	return nil
}

// ValidateStudyInputs checks the product and design-context fields. Exposed
// so the job manager can apply the same checks to API-supplied requests
// before creating a job record.
func ValidateStudyInputs(product, designContext string) error {
	if len(product) > MaxProductLength {
		return fmt.Errorf("invalid product: exceeds maximum length of %d characters (got %d)",
			MaxProductLength, len(product))
	}
	if containsControlChars(product) {
		return fmt.Errorf("invalid product: contains invalid control characters")
	}

	if len(designContext) > MaxDesignContextLength {
		return fmt.Errorf("invalid design_context: exceeds maximum length of %d characters (got %d)",
			MaxDesignContextLength, len(designContext))
	}
	if containsControlChars(designContext) {
		return fmt.Errorf("invalid design_context: contains invalid control characters")
	}

	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model '%s' name exceeds maximum length of %d (got %d)",
			configKey, MaxModelNameLength, len(modelName))
	}

	// Check for control characters
	if containsControlChars(modelName) {
		return fmt.Errorf("model '%s' name contains invalid control characters", configKey)
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, configKey string) error {
	// Parse URL
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("model '%s' has invalid base_url: %w", configKey, err)
	}

	// Check scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("model '%s' base_url must use http or https scheme (got %s)",
			configKey, u.Scheme)
	}

	// Check host is present
	if u.Host == "" {
		return fmt.Errorf("model '%s' base_url must have a host", configKey)
	}

	return nil
}

// validateTemplateSizes checks that templates are within reasonable size limits
func (c *Config) validateTemplateSizes() error {
	templates := []struct {
		name  string
		value string
	}{
		{"persona_generation", c.Prompts.PersonaGeneration},
		{"experience_simulation", c.Prompts.ExperienceSimulation},
		{"interview", c.Prompts.Interview},
		{"need_extraction", c.Prompts.NeedExtraction},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
