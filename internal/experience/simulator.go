package experience

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

// Simulator asks the backend to narrate one persona's lived experience with
// the product. The narrative is the raw material the interview digs into.
type Simulator struct {
	backend  api.Backend
	template string
	runLog   *metrics.Log
	logger   *slog.Logger
}

// NewSimulator creates an experience simulator.
func NewSimulator(backend api.Backend, template string, runLog *metrics.Log, logger *slog.Logger) *Simulator {
	return &Simulator{
		backend:  backend,
		template: template,
		runLog:   runLog,
		logger:   logger.With("component", "experience"),
	}
}

// Simulate produces the experience narrative for one persona.
func (s *Simulator) Simulate(ctx context.Context, persona models.Persona, product string) (*models.ExperienceRecord, error) {
	prompt, err := util.RenderTemplate(s.template, map[string]interface{}{
		"PersonaDescription": persona.Description,
		"Product":            product,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render experience template: %w", err)
	}

	start := time.Now()
	gen, err := s.backend.Generate(ctx, prompt)
	s.recordCall(persona.ID, start, gen, err)
	if err != nil {
		return nil, fmt.Errorf("experience simulation failed for persona %d: %w", persona.ID, err)
	}

	narrative := strings.TrimSpace(util.StripThinkTags(gen.Text))
	if narrative == "" {
		return nil, fmt.Errorf("model returned an empty experience narrative for persona %d", persona.ID)
	}

	s.logger.Debug("Simulated experience",
		"persona_id", persona.ID,
		"narrative_length", len(narrative))

	return &models.ExperienceRecord{
		PersonaID: persona.ID,
		Product:   product,
		Narrative: narrative,
	}, nil
}

func (s *Simulator) recordCall(personaID int, start time.Time, gen api.Generation, callErr error) {
	if s.runLog == nil {
		return
	}
	rec := models.MetricsRecord{
		StageID:    metrics.StageExperienceSimulation,
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
	s.runLog.RecordCall(rec)
}
