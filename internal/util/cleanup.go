package util

import (
	"regexp"
	"strings"
)

// Precompiled regex patterns for reasoning-tag detection
var (
	// Matches various think/reasoning tag formats
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// Matches Chinese reasoning tags (some Chinese models use these)
	chineseThinkTagRegex = regexp.MustCompile(`(?i)<思考>([\s\S]*?)</思考>`)
)

// ContainsThinkTags checks if the response contains think/reasoning tags
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response) || chineseThinkTagRegex.MatchString(response)
}

// StripThinkTags removes think/reasoning tags and their content, leaving the
// final answer. Persona descriptions, interview answers, and extraction
// payloads all pass through this before being stored or parsed.
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	result = chineseThinkTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// CleanAnswer trims assistant-style meta chatter from the end of a simulated
// interview answer while preserving the in-character response text.
func CleanAnswer(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return content
	}

	lower := strings.ToLower(trimmed)
	cutIndex := len(trimmed)
	phrases := []string{
		"let me know if you have any other questions",
		"let me know if you'd like me to elaborate",
		"i hope this helps",
		"hope this answers your question",
		"(note: this is a simulated response",
		"as an ai language model",
	}

	for _, phrase := range phrases {
		if idx := strings.Index(lower, phrase); idx >= 0 && idx < cutIndex {
			cutIndex = idx
		}
	}

	if cutIndex < len(trimmed) {
		result := strings.TrimSpace(trimmed[:cutIndex])
		if result != "" {
			return result
		}
	}

	return trimmed
}
