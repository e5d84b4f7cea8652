package util

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Parsed templates are cached by their source text. Prompt templates are
// rendered once per persona and once per interview question, so the same
// handful of strings would otherwise be parsed over and over.
var (
	templateCacheMu sync.RWMutex
	templateCache   = make(map[string]*template.Template)
)

// RenderTemplate renders a template string with the given data
// Includes validation to prevent template injection attacks
func RenderTemplate(tmpl string, data map[string]interface{}) (string, error) {
	// Validate template for forbidden directives that could be exploited
	// Block: call (function calls), define (template definition), template (template inclusion)
	forbiddenDirectives := []string{"{{call", "{{define", "{{template", "{{block"}
	for _, directive := range forbiddenDirectives {
		if strings.Contains(tmpl, directive) {
			return "", fmt.Errorf("template contains forbidden directive: %s", directive)
		}
	}

	t, err := cachedTemplate(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func cachedTemplate(tmpl string) (*template.Template, error) {
	templateCacheMu.RLock()
	t, ok := templateCache[tmpl]
	templateCacheMu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New("prompt").
		Option("missingkey=error"). // Fail on missing keys to prevent silent errors
		Parse(tmpl)
	if err != nil {
		return nil, err
	}

	templateCacheMu.Lock()
	templateCache[tmpl] = t
	templateCacheMu.Unlock()

	return t, nil
}

// ClearTemplateCache drops all cached parsed templates.
func ClearTemplateCache() {
	templateCacheMu.Lock()
	templateCache = make(map[string]*template.Template)
	templateCacheMu.Unlock()
}

// TruncateString truncates a string to maxLen runes (Unicode-safe)
// Uses runes instead of bytes to properly handle multi-byte UTF-8 characters
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
