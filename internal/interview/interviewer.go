package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nvoss/needforge/internal/api"
	"github.com/nvoss/needforge/internal/metrics"
	"github.com/nvoss/needforge/internal/util"
	"github.com/nvoss/needforge/pkg/models"
)

// Interviewer walks one persona through the fixed question set, in order.
// With followups enabled, each question after the first carries the prior
// exchanges as context so answers can build on each other.
type Interviewer struct {
	backend   api.Backend
	template  string
	questions []string
	followups bool
	runLog    *metrics.Log
	logger    *slog.Logger
}

// New creates an interviewer over a fixed, ordered question set.
func New(backend api.Backend, template string, questions []string, followups bool, runLog *metrics.Log, logger *slog.Logger) *Interviewer {
	return &Interviewer{
		backend:   backend,
		template:  template,
		questions: questions,
		followups: followups,
		runLog:    runLog,
		logger:    logger.With("component", "interview"),
	}
}

// Questions returns the question set in interview order.
func (iv *Interviewer) Questions() []string {
	return iv.questions
}

// Conduct runs the full interview for one persona. Questions are asked in
// configuration order and every question must be answered; a failed
// question fails the interview, and the unit's failure isolation happens
// one level up.
func (iv *Interviewer) Conduct(ctx context.Context, persona models.Persona, product string, experience *models.ExperienceRecord) (*models.InterviewRecord, error) {
	if len(iv.questions) == 0 {
		return nil, fmt.Errorf("no interview questions configured")
	}

	record := &models.InterviewRecord{
		PersonaID: persona.ID,
		Product:   product,
	}

	for i, question := range iv.questions {
		answer, err := iv.ask(ctx, persona, product, experience, question, record.Exchanges)
		if err != nil {
			return nil, fmt.Errorf("interview question %d/%d failed for persona %d: %w",
				i+1, len(iv.questions), persona.ID, err)
		}
		record.Exchanges = append(record.Exchanges, models.QuestionAnswer{
			Question: question,
			Answer:   answer,
		})
	}

	iv.logger.Debug("Interview complete",
		"persona_id", persona.ID,
		"exchanges", len(record.Exchanges))

	return record, nil
}

func (iv *Interviewer) ask(ctx context.Context, persona models.Persona, product string, experience *models.ExperienceRecord, question string, prior []models.QuestionAnswer) (string, error) {
	prompt, err := util.RenderTemplate(iv.template, map[string]interface{}{
		"PersonaDescription": persona.Description,
		"Product":            product,
		"Experience":         experience.Narrative,
		"Question":           question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render interview template: %w", err)
	}

	if iv.followups && len(prior) > 0 {
		prompt += "\n\nPrevious Interview:\n" + formatPriorExchanges(prior)
	}

	start := time.Now()
	gen, err := iv.backend.Generate(ctx, prompt)
	iv.recordCall(persona.ID, start, gen, err)
	if err != nil {
		return "", err
	}

	answer := util.CleanAnswer(gen.Text)
	if answer == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return answer, nil
}

func formatPriorExchanges(prior []models.QuestionAnswer) string {
	parts := make([]string, len(prior))
	for i, qa := range prior {
		parts[i] = fmt.Sprintf("Q: %s\nA: %s", qa.Question, qa.Answer)
	}
	return strings.Join(parts, "\n\n")
}

func (iv *Interviewer) recordCall(personaID int, start time.Time, gen api.Generation, callErr error) {
	if iv.runLog == nil {
		return
	}
	rec := models.MetricsRecord{
		StageID:    metrics.StageInterviews,
		UnitID:     personaID,
		StartTime:  start,
		EndTime:    time.Now(),
		TokensIn:   gen.TokensIn,
		TokensOut:  gen.TokensOut,
		Model:      gen.Model,
		Outcome:    models.OutcomeSuccess,
		RetryCount: gen.Retries,
	}
	if callErr != nil {
		rec.Outcome = models.OutcomeError
		rec.ErrMsg = callErr.Error()
	}
	iv.runLog.RecordCall(rec)
}
