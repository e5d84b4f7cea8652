package persona

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

const (
	// emptyContextBlock seeds the first persona's prompt before any
	// siblings exist to differentiate against.
	emptyContextBlock = "None yet - this is the first agent."

	// contextSeparator joins prior persona descriptions in the prompt.
	contextSeparator = "\n\n---\n\n"
)

// Generator produces persona descriptions one at a time. Each prompt embeds
// every previously generated persona so the model steers away from
// duplicates; that dependency chain is why this stage never parallelizes.
type Generator struct {
	backend  api.Backend
	template string
	runLog   *metrics.Log
	logger   *slog.Logger
}

// NewGenerator creates a persona generator.
func NewGenerator(backend api.Backend, template string, runLog *metrics.Log, logger *slog.Logger) *Generator {
	return &Generator{
		backend:  backend,
		template: template,
		runLog:   runLog,
		logger:   logger.With("component", "persona"),
	}
}

// GenerateAll produces count personas for the design context. Persona IDs
// are 1-based. Any failure aborts the run: without the full persona set the
// diversity chain is broken and downstream stages have nothing to work on.
// The progress callback, when non-nil, fires after each persona completes.
func (g *Generator) GenerateAll(ctx context.Context, designContext string, count int, progress func(completed int)) ([]models.Persona, error) {
	personas := make([]models.Persona, 0, count)

	for i := 1; i <= count; i++ {
		p, err := g.generateOne(ctx, designContext, i, personas)
		if err != nil {
			return nil, fmt.Errorf("failed to generate persona %d/%d: %w", i, count, err)
		}
		personas = append(personas, p)

		g.logger.Info("Generated persona",
			"persona_id", i,
			"total", count,
			"description_length", len(p.Description))

		if progress != nil {
			progress(i)
		}
	}

	return personas, nil
}

func (g *Generator) generateOne(ctx context.Context, designContext string, id int, previous []models.Persona) (models.Persona, error) {
	prompt, err := util.RenderTemplate(g.template, map[string]interface{}{
		"DesignContext": designContext,
		"ContextBlock":  contextBlock(previous),
	})
	if err != nil {
		return models.Persona{}, fmt.Errorf("failed to render persona template: %w", err)
	}

	start := time.Now()
	gen, err := g.backend.Generate(ctx, prompt)
	g.recordCall(start, gen, err)
	if err != nil {
		return models.Persona{}, err
	}

	description := strings.TrimSpace(util.StripThinkTags(gen.Text))
	if description == "" {
		return models.Persona{}, fmt.Errorf("model returned an empty persona description")
	}

	return models.Persona{
		ID:            id,
		Description:   description,
		DesignContext: designContext,
	}, nil
}

// contextBlock renders the descriptions of all previously generated
// personas, or the seed text when none exist yet.
func contextBlock(previous []models.Persona) string {
	if len(previous) == 0 {
		return emptyContextBlock
	}
	descriptions := make([]string, len(previous))
	for i, p := range previous {
		descriptions[i] = p.Description
	}
	return strings.Join(descriptions, contextSeparator)
}

func (g *Generator) recordCall(start time.Time, gen api.Generation, callErr error) {
	if g.runLog == nil {
		return
	}
	rec := models.MetricsRecord{
		StageID:    metrics.StageAgentGeneration,
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
	g.runLog.RecordCall(rec)
}
