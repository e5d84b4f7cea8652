package persona

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nvoss/needforge/internal/api"
)

// promptRecordingBackend captures every prompt it receives.
type promptRecordingBackend struct {
	prompts   []string
	responses []string
	failAt    int // 1-based call index to fail at, 0 disables
}

func (b *promptRecordingBackend) Generate(ctx context.Context, prompt string) (api.Generation, error) {
	b.prompts = append(b.prompts, prompt)
	call := len(b.prompts)
	if b.failAt > 0 && call == b.failAt {
		return api.Generation{}, fmt.Errorf("backend failure on call %d", call)
	}
	text := fmt.Sprintf("Persona number %d", call)
	if call <= len(b.responses) {
		text = b.responses[call-1]
	}
	return api.Generation{Text: text, TokensIn: 5, TokensOut: 10, Model: "test-model"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const personaTemplate = "Context: {{.DesignContext}}\nExisting agents:\n{{.ContextBlock}}"

func TestGenerateAll(t *testing.T) {
	backend := &promptRecordingBackend{}
	gen := NewGenerator(backend, personaTemplate, nil, discardLogger())

	personas, err := gen.GenerateAll(context.Background(), "kitchen tools", 3, nil)
	if err != nil {
		t.Fatalf("GenerateAll() error = %v", err)
	}
	if len(personas) != 3 {
		t.Fatalf("len(personas) = %d, want 3", len(personas))
	}

	for i, p := range personas {
		if p.ID != i+1 {
			t.Errorf("personas[%d].ID = %d, want %d", i, p.ID, i+1)
		}
		if p.DesignContext != "kitchen tools" {
			t.Errorf("personas[%d].DesignContext = %q", i, p.DesignContext)
		}
	}
}

func TestGenerateAllEmbedsPriorPersonas(t *testing.T) {
	backend := &promptRecordingBackend{
		responses: []string{"Alice the baker", "Bob the chef", "Carol the barista"},
	}
	gen := NewGenerator(backend, personaTemplate, nil, discardLogger())

	if _, err := gen.GenerateAll(context.Background(), "ctx", 3, nil); err != nil {
		t.Fatalf("GenerateAll() error = %v", err)
	}

	// First prompt carries the seed text, not any persona
	if !strings.Contains(backend.prompts[0], emptyContextBlock) {
		t.Errorf("first prompt missing seed context block:\n%s", backend.prompts[0])
	}

	// Prompt i embeds the descriptions of personas 1..i-1 and nothing later
	if !strings.Contains(backend.prompts[1], "Alice the baker") {
		t.Error("second prompt should embed the first persona")
	}
	if strings.Contains(backend.prompts[1], "Bob the chef") {
		t.Error("second prompt must not embed personas that do not exist yet")
	}
	if !strings.Contains(backend.prompts[2], "Alice the baker") || !strings.Contains(backend.prompts[2], "Bob the chef") {
		t.Error("third prompt should embed both earlier personas")
	}
	if !strings.Contains(backend.prompts[2], contextSeparator) {
		t.Error("multiple prior personas should be joined with the separator")
	}
}

func TestGenerateAllFailsFast(t *testing.T) {
	backend := &promptRecordingBackend{failAt: 2}
	gen := NewGenerator(backend, personaTemplate, nil, discardLogger())

	_, err := gen.GenerateAll(context.Background(), "ctx", 4, nil)
	if err == nil {
		t.Fatal("GenerateAll() expected error, got nil")
	}
	if len(backend.prompts) != 2 {
		t.Errorf("backend called %d times, want 2 (no calls after the failure)", len(backend.prompts))
	}
}

func TestGenerateAllProgressCallback(t *testing.T) {
	backend := &promptRecordingBackend{}
	gen := NewGenerator(backend, personaTemplate, nil, discardLogger())

	var seen []int
	_, err := gen.GenerateAll(context.Background(), "ctx", 3, func(completed int) {
		seen = append(seen, completed)
	})
	if err != nil {
		t.Fatalf("GenerateAll() error = %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("progress callbacks = %v, want [1 2 3]", seen)
	}
}

func TestGenerateAllStripsThinkTags(t *testing.T) {
	backend := &promptRecordingBackend{
		responses: []string{"<think>reasoning here</think>Dana the gardener"},
	}
	gen := NewGenerator(backend, personaTemplate, nil, discardLogger())

	personas, err := gen.GenerateAll(context.Background(), "ctx", 1, nil)
	if err != nil {
		t.Fatalf("GenerateAll() error = %v", err)
	}
	if personas[0].Description != "Dana the gardener" {
		t.Errorf("Description = %q, want think tags stripped", personas[0].Description)
	}
}
