package util

import (
	"regexp"
	"strings"
)

// Precompiled regex patterns for performance (compiled once at package init)
var (
	jsonCodeBlockRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
)

// ExtractJSON pulls the JSON payload out of a model response that may wrap
// it in markdown fences or surrounding prose, and heals truncated arrays and
// objects so that a cut-off response still yields a parseable span.
// Handles both arrays [] and objects {}
func ExtractJSON(s string) string {
	// Strip a single markdown code fence, with or without a language tag
	matches := jsonCodeBlockRegex.FindStringSubmatch(s)
	if len(matches) > 1 {
		s = strings.TrimSpace(matches[1])
	} else {
		s = strings.TrimSpace(s)
	}

	// Whichever delimiter appears first decides the payload shape: an object
	// that merely contains an array must not be reduced to that array
	arrayStart := strings.Index(s, "[")
	objectStart := strings.Index(s, "{")

	if objectStart != -1 && (arrayStart == -1 || objectStart < arrayStart) {
		objectEnd := findMatchingBracket(s, objectStart, '{', '}')
		if objectEnd != -1 {
			return s[objectStart : objectEnd+1]
		}
		// Truncated object - close the string if the cut happened inside
		// one, drop dangling separators, then balance the braces
		return healTruncatedObject(s[objectStart:])
	}

	if arrayStart != -1 {
		arrayEnd := findMatchingBracket(s, arrayStart, '[', ']')
		if arrayEnd != -1 {
			// Found complete array
			return s[arrayStart : arrayEnd+1]
		}
		// Truncated array - try to close it
		lastQuote := strings.LastIndex(s, "\"")
		if lastQuote > arrayStart {
			// Has content, close the array
			trimmed := strings.TrimRight(s[arrayStart:], " \n\t,")
			return trimmed + "]"
		}
	}

	// Return as-is if no extraction needed
	return s
}

// healTruncatedObject closes an object whose tail was cut off mid-response.
// Closers are appended in nesting order so an object holding an unfinished
// array heals to valid JSON.
func healTruncatedObject(s string) string {
	if endsInsideString(s) {
		s += "\""
	}
	s = strings.TrimRight(s, " \n\t,")

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, ch)
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}

// findMatchingBracket finds the matching closing bracket for an opening bracket
// using proper bracket matching that handles escaped quotes and strings
// Returns -1 if no matching bracket is found
func findMatchingBracket(s string, startPos int, openChar, closeChar rune) int {
	count := 0
	inString := false
	escaped := false

	for i := startPos; i < len(s); i++ {
		ch := rune(s[i])

		// Handle escape sequences
		if escaped {
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			continue
		}

		// Handle strings
		if ch == '"' {
			inString = !inString
			continue
		}

		// Only count brackets outside of strings
		if !inString {
			if ch == openChar {
				count++
			} else if ch == closeChar {
				count--
				if count == 0 {
					return i
				}
			}
		}
	}

	return -1 // No matching bracket found
}

// endsInsideString reports whether s terminates in the middle of a string
// literal (an odd number of unescaped quotes).
func endsInsideString(s string) bool {
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch s[i] {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		}
	}

	return inString
}

// SanitizeJSON fixes common JSON issues from LLM responses
// Specifically handles unescaped newlines in string values
func SanitizeJSON(s string) string {
	var result strings.Builder
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}

		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}

		// Replace literal newlines in strings with \n
		if inString && (ch == '\n' || ch == '\r') {
			result.WriteString("\\n")
			// Skip \r if followed by \n
			if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}

		result.WriteByte(ch)
	}

	return result.String()
}

// RepairJSON applies last-resort fixes to a span that still fails to parse:
// trailing separators before closing delimiters are dropped, duplicate
// separators collapse to one, missing separators between adjacent values are
// inserted, bare newlines inside strings are escaped, and single quotes are
// normalized to double quotes only when the text contains no double quotes
// at all (the unambiguous case).
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)

	if !strings.Contains(s, "\"") && strings.Contains(s, "'") {
		s = strings.ReplaceAll(s, "'", "\"")
	}

	s = SanitizeJSON(s)

	var out strings.Builder
	out.Grow(len(s))

	var ws strings.Builder // whitespace run held back until its fate is known
	inString := false
	escaped := false
	sawComma := false
	prevValueEnd := false

	// flushBefore emits any held separator and whitespace, deciding based on
	// the significant character that follows the run
	flushBefore := func(next byte) {
		if sawComma {
			if next != '}' && next != ']' {
				out.WriteByte(',')
			}
			sawComma = false
		} else if prevValueEnd && isValueStart(next) {
			out.WriteByte(',')
		}
		out.WriteString(ws.String())
		ws.Reset()
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			out.WriteByte(ch)
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
				prevValueEnd = true
			}
			continue
		}

		switch {
		case ch == '"':
			flushBefore(ch)
			out.WriteByte(ch)
			inString = true
			prevValueEnd = false
		case ch == ',':
			sawComma = true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			ws.WriteByte(ch)
		default:
			flushBefore(ch)
			out.WriteByte(ch)
			prevValueEnd = ch != '{' && ch != '[' && ch != ':'
		}
	}

	return out.String()
}

func isValueStart(ch byte) bool {
	switch ch {
	case '"', '{', '[', '-', 't', 'f', 'n':
		return true
	}
	return ch >= '0' && ch <= '9'
}
