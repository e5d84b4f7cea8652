package needs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvoss/needforge/internal/api"
	"github.com/nvoss/needforge/internal/metrics"
	"github.com/nvoss/needforge/internal/util"
	"github.com/nvoss/needforge/pkg/models"
)

// Extractor recovers latent needs from interview transcripts, one backend
// call per question/answer exchange.
type Extractor struct {
	backend  api.Backend
	template string
	runLog   *metrics.Log
	logger   *slog.Logger
}

// NewExtractor creates a need extractor.
func NewExtractor(backend api.Backend, template string, runLog *metrics.Log, logger *slog.Logger) *Extractor {
	return &Extractor{
		backend:  backend,
		template: template,
		runLog:   runLog,
		logger:   logger.With("component", "extractor"),
	}
}

// ExtractFromInterview runs extraction over every exchange of one persona's
// interview. An unparseable response degrades to zero records for that
// exchange so one bad answer does not void the rest of the transcript; a
// backend failure aborts the interview and surfaces the error.
func (e *Extractor) ExtractFromInterview(ctx context.Context, personaID int, persona, product string, interview *models.InterviewRecord) (models.UnitExtraction, error) {
	ext := models.UnitExtraction{
		PersonaID: personaID,
		Persona:   persona,
		Product:   product,
		Needs:     []models.NeedRecord{},
	}

	for i, exchange := range interview.Exchanges {
		records, err := e.extractExchange(ctx, personaID, persona, exchange)
		if err != nil {
			return ext, fmt.Errorf("need extraction failed for exchange %d of persona %d: %w", i+1, personaID, err)
		}
		ext.Needs = append(ext.Needs, records...)
	}

	ext.TotalNeeds = len(ext.Needs)
	return ext, nil
}

func (e *Extractor) extractExchange(ctx context.Context, personaID int, persona string, exchange models.QuestionAnswer) ([]models.NeedRecord, error) {
	prompt, err := util.RenderTemplate(e.template, map[string]interface{}{
		"PersonaDescription": persona,
		"Question":           exchange.Question,
		"Answer":             exchange.Answer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render extraction template: %w", err)
	}

	start := time.Now()
	gen, err := e.backend.Generate(ctx, prompt)
	e.recordCall(personaID, start, gen, err)
	if err != nil {
		return nil, err
	}

	content := util.StripThinkTags(gen.Text)
	records, err := ParseRecords(content)
	if err != nil {
		// Recovery-chain exhaustion is never fatal: the exchange yields no
		// records, the run continues
		e.logger.Warn("Unparseable extraction response, no needs recorded",
			"persona_id", personaID,
			"response_length", len(content),
			"first_200_chars", util.TruncateString(content, 200),
			"error", err)
		return nil, nil
	}

	// Every record keeps its originating exchange for traceability
	for i := range records {
		records[i].OriginatingQuestion = exchange.Question
		records[i].OriginatingAnswer = exchange.Answer
	}
	return records, nil
}

func (e *Extractor) recordCall(personaID int, start time.Time, gen api.Generation, callErr error) {
	if e.runLog == nil {
		return
	}
	rec := models.MetricsRecord{
		StageID:    metrics.StageNeedExtraction,
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
	e.runLog.RecordCall(rec)
}
