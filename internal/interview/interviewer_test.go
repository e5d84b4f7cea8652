package interview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nvoss/needforge/internal/api"
	"github.com/nvoss/needforge/pkg/models"
)

type promptRecordingBackend struct {
	prompts []string
	failAt  int // 1-based call index to fail at, 0 disables
}

func (b *promptRecordingBackend) Generate(ctx context.Context, prompt string) (api.Generation, error) {
	b.prompts = append(b.prompts, prompt)
	call := len(b.prompts)
	if b.failAt > 0 && call == b.failAt {
		return api.Generation{}, fmt.Errorf("backend failure on call %d", call)
	}
	return api.Generation{
		Text:      fmt.Sprintf("Answer %d", call),
		TokensIn:  10,
		TokensOut: 30,
		Model:     "test-model",
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const interviewTemplate = "You are {{.PersonaDescription}}.\nProduct: {{.Product}}\nYour experience: {{.Experience}}\nQuestion: {{.Question}}"

var testExperience = &models.ExperienceRecord{
	PersonaID: 1,
	Product:   "Smart Kettle",
	Narrative: "The lid kept sticking every morning.",
}

func TestConduct(t *testing.T) {
	questions := []string{"What frustrated you?", "What would you change?", "When do you use it?"}
	backend := &promptRecordingBackend{}
	iv := New(backend, interviewTemplate, questions, false, nil, discardLogger())

	persona := models.Persona{ID: 1, Description: "Maria, 67"}
	rec, err := iv.Conduct(context.Background(), persona, "Smart Kettle", testExperience)
	if err != nil {
		t.Fatalf("Conduct() error = %v", err)
	}

	if len(rec.Exchanges) != 3 {
		t.Fatalf("len(Exchanges) = %d, want 3", len(rec.Exchanges))
	}
	// Questions are asked in configuration order
	for i, q := range questions {
		if rec.Exchanges[i].Question != q {
			t.Errorf("Exchanges[%d].Question = %q, want %q", i, rec.Exchanges[i].Question, q)
		}
		if rec.Exchanges[i].Answer == "" {
			t.Errorf("Exchanges[%d].Answer is empty", i)
		}
	}

	// Without followups, prior exchanges are not embedded
	for i, p := range backend.prompts {
		if strings.Contains(p, "Previous Interview:") {
			t.Errorf("prompt %d embeds prior exchanges with followups disabled", i)
		}
	}
}

func TestConductWithFollowups(t *testing.T) {
	questions := []string{"First question?", "Second question?"}
	backend := &promptRecordingBackend{}
	iv := New(backend, interviewTemplate, questions, true, nil, discardLogger())

	persona := models.Persona{ID: 1, Description: "Maria"}
	if _, err := iv.Conduct(context.Background(), persona, "Smart Kettle", testExperience); err != nil {
		t.Fatalf("Conduct() error = %v", err)
	}

	if strings.Contains(backend.prompts[0], "Previous Interview:") {
		t.Error("first prompt must not carry prior exchanges")
	}
	second := backend.prompts[1]
	if !strings.Contains(second, "Previous Interview:") {
		t.Fatal("second prompt missing prior exchange context")
	}
	if !strings.Contains(second, "Q: First question?") || !strings.Contains(second, "A: Answer 1") {
		t.Errorf("second prompt missing the first exchange:\n%s", second)
	}
}

func TestConductFailedQuestionFailsInterview(t *testing.T) {
	questions := []string{"q1", "q2", "q3"}
	backend := &promptRecordingBackend{failAt: 2}
	iv := New(backend, interviewTemplate, questions, false, nil, discardLogger())

	_, err := iv.Conduct(context.Background(), models.Persona{ID: 1}, "product", testExperience)
	if err == nil {
		t.Fatal("Conduct() expected error, got nil")
	}
	if len(backend.prompts) != 2 {
		t.Errorf("backend called %d times, want 2 (no questions after the failure)", len(backend.prompts))
	}
}

func TestConductNoQuestions(t *testing.T) {
	iv := New(&promptRecordingBackend{}, interviewTemplate, nil, false, nil, discardLogger())

	_, err := iv.Conduct(context.Background(), models.Persona{ID: 1}, "product", testExperience)
	if err == nil {
		t.Error("Conduct() expected error for empty question set")
	}
}
