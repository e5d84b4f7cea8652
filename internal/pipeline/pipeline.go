package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nvoss/needforge/internal/api"
	"github.com/nvoss/needforge/internal/checkpoint"
	"github.com/nvoss/needforge/internal/config"
	"github.com/nvoss/needforge/internal/experience"
	"github.com/nvoss/needforge/internal/interview"
	"github.com/nvoss/needforge/internal/metrics"
	"github.com/nvoss/needforge/internal/needs"
	"github.com/nvoss/needforge/internal/persona"
	"github.com/nvoss/needforge/internal/writer"
	"github.com/nvoss/needforge/pkg/models"
)

// Pipeline runs the full elicitation flow: diversity-ordered persona
// generation, per-persona experience and interview units, then need
// extraction and aggregation.
type Pipeline struct {
	cfg           *config.Config
	personas      *persona.Generator
	simulator     *experience.Simulator
	interviewer   *interview.Interviewer
	extractor     *needs.Extractor
	checkpointMgr *checkpoint.Manager
	session       *writer.SessionManager
	resumeMode    bool
	runLog        *metrics.Log
	collector     *metrics.Collector
	progress      *reporter
	logger        *slog.Logger
	stats         *models.RunStats
}

// New wires the pipeline stages from config. Each model role gets its own
// backend; unit-stage backends are gated by a shared semaphore when the
// parallel strategy carries a concurrency limit, so the cap applies to model
// calls rather than whole units. session, checkpointMgr, collector, and
// onProgress may all be nil.
func New(
	cfg *config.Config,
	secrets *config.Secrets,
	client *api.Client,
	questions []string,
	session *writer.SessionManager,
	checkpointMgr *checkpoint.Manager,
	resumeMode bool,
	runLog *metrics.Log,
	collector *metrics.Collector,
	onProgress ProgressFunc,
	logger *slog.Logger,
) *Pipeline {
	agentModel := cfg.Models["agent"]
	interviewModel := cfg.Models["interview"]
	extractionModel := cfg.Models["extraction"]

	agentBackend := client.Generator(agentModel, secrets.GetAPIKey(agentModel.BaseURL))
	interviewBackend := client.Generator(interviewModel, secrets.GetAPIKey(interviewModel.BaseURL))
	extractionBackend := client.Generator(extractionModel, secrets.GetAPIKey(extractionModel.BaseURL))

	// The throttle wraps only the backends that run inside concurrent units
	var unitExperience api.Backend = agentBackend
	var unitInterview api.Backend = interviewBackend
	if cfg.Elicitation.Strategy == models.StrategyParallel && cfg.Elicitation.Concurrency > 0 {
		sem := make(chan struct{}, cfg.Elicitation.Concurrency)
		unitExperience = &gatedBackend{inner: agentBackend, sem: sem}
		unitInterview = &gatedBackend{inner: interviewBackend, sem: sem}
	}

	stats := &models.RunStats{StartTime: time.Now()}
	if resumeMode && checkpointMgr != nil {
		cp := checkpointMgr.GetCheckpoint()
		stats = &cp.Stats
		stats.StartTime = time.Now()
	}

	return &Pipeline{
		cfg:           cfg,
		personas:      persona.NewGenerator(agentBackend, cfg.Prompts.PersonaGeneration, runLog, logger),
		simulator:     experience.NewSimulator(unitExperience, cfg.Prompts.ExperienceSimulation, runLog, logger),
		interviewer:   interview.New(unitInterview, cfg.Prompts.Interview, questions, cfg.Elicitation.Followups, runLog, logger),
		extractor:     needs.NewExtractor(extractionBackend, cfg.Prompts.NeedExtraction, runLog, logger),
		checkpointMgr: checkpointMgr,
		session:       session,
		resumeMode:    resumeMode,
		runLog:        runLog,
		collector:     collector,
		progress:      newReporter(onProgress),
		logger:        logger,
		stats:         stats,
	}
}

// Run executes the full pipeline and returns the terminal result bundle.
// Under the serial strategy any unit failure aborts the run with an error;
// under the parallel strategy failed units are isolated and reported in the
// bundle metadata instead.
func (p *Pipeline) Run(ctx context.Context) (*models.ResultBundle, error) {
	defer func() {
		if p.checkpointMgr == nil {
			return
		}
		if err := p.checkpointMgr.SaveSync(); err != nil {
			p.logger.Error("Failed to save final checkpoint", "error", err)
		}
		if err := p.checkpointMgr.Close(); err != nil {
			p.logger.Error("Failed to close checkpoint manager", "error", err)
		}
	}()

	product := p.cfg.Elicitation.Product
	unitCount := p.cfg.Elicitation.UnitCount

	p.logger.Info("Starting elicitation pipeline",
		"product", product,
		"unit_count", unitCount,
		"strategy", p.cfg.Elicitation.Strategy,
		"resume_mode", p.resumeMode)

	// Phase 1: personas, strictly serial so each prompt can embed its
	// predecessors
	p.progress.stage(metrics.StageAgentGeneration, "Generating personas", percentAgentGeneration)
	personaStart := time.Now()

	personas, err := p.generatePersonas(ctx)
	if err != nil {
		return nil, fmt.Errorf("persona generation failed: %w", err)
	}
	personaDuration := time.Since(personaStart)
	p.logger.Info("Personas ready", "count", len(personas))

	if p.session != nil && p.cfg.Elicitation.SaveIntermediate {
		if err := p.session.SaveJSON("personas.json", personas); err != nil {
			p.logger.Warn("Failed to save personas artifact", "error", err)
		}
	}

	// Phase 2: one unit per persona (experience + full interview)
	jobs := buildUnitJobs(personas, product)
	pending := jobs
	var priorResults []models.UnitResult
	if p.resumeMode && p.checkpointMgr != nil {
		cp := p.checkpointMgr.GetCheckpoint()
		pending = checkpoint.GetPendingUnits(cp, jobs)
		priorResults = checkpoint.GetCompletedResults(cp)
		p.logger.Info("Resuming unit phase",
			"total", len(jobs),
			"completed", len(priorResults),
			"pending", len(pending))
	}

	p.progress.stage(metrics.StageParallelProcessing, "Processing units", percentParallelProcessing)
	unitsStart := time.Now()

	var newResults []models.UnitResult
	if p.cfg.Elicitation.Strategy == models.StrategyParallel {
		newResults, err = p.runParallel(ctx, pending)
	} else {
		newResults, err = p.runSerial(ctx, pending)
	}
	if err != nil {
		return nil, err
	}

	results := append(priorResults, newResults...)
	sort.Slice(results, func(i, j int) bool {
		return results[i].PersonaID < results[j].PersonaID
	})
	unitsDuration := time.Since(unitsStart)
	if p.cfg.Elicitation.Strategy == models.StrategyParallel {
		p.runLog.RecordStage(metrics.StageParallelProcessing, unitsStart, time.Now(), len(results))
	}

	experiences, interviews := collectRecords(results)
	if p.session != nil && p.cfg.Elicitation.SaveIntermediate {
		if err := p.session.SaveJSON("experiences.json", experiences); err != nil {
			p.logger.Warn("Failed to save experiences artifact", "error", err)
		}
		if err := p.session.SaveJSON("interviews.json", interviews); err != nil {
			p.logger.Warn("Failed to save interviews artifact", "error", err)
		}
	}

	// Phase 3: extraction over successful interviews only
	if p.checkpointMgr != nil {
		if err := p.checkpointMgr.MarkNeedsPhase(); err != nil {
			p.logger.Warn("Failed to checkpoint needs phase", "error", err)
		}
	}
	p.progress.stage(metrics.StageNeedExtraction, "Extracting needs", percentNeedExtraction)

	extractions, err := p.extractNeeds(ctx, results, product)
	if err != nil {
		return nil, err
	}
	aggregated := needs.Aggregate(extractions)
	if p.collector != nil {
		p.collector.AddNeedsExtracted(aggregated.TotalNeeds)
	}

	// Finalize
	p.stats.EndTime = time.Now()
	p.stats.TotalUnits = len(results)
	p.stats.TotalNeeds = aggregated.TotalNeeds
	p.stats.TotalDuration = p.stats.EndTime.Sub(p.stats.StartTime)
	if p.stats.SuccessCount > 0 {
		p.stats.AverageDuration = p.stats.TotalDuration / time.Duration(p.stats.SuccessCount)
	}
	if p.checkpointMgr != nil {
		if err := p.checkpointMgr.MarkComplete(p.stats); err != nil {
			p.logger.Warn("Failed to save final checkpoint", "error", err)
		}
	}

	bundle := p.buildBundle(personas, experiences, interviews, extractions, aggregated, results, personaDuration, unitsDuration)

	if err := p.writeOutputs(bundle); err != nil {
		p.logger.Error("Failed to write session outputs", "error", err)
	}

	p.progress.snapshot("completed", "Elicitation complete", percentCompleted, &models.ResultSnapshot{
		Personas:    personas,
		Experiences: experiences,
		Interviews:  interviews,
		Needs:       &bundle.Aggregated,
	})

	p.logger.Info("Elicitation pipeline completed",
		"units", p.stats.TotalUnits,
		"successful", p.stats.SuccessCount,
		"failed", p.stats.FailureCount,
		"needs", aggregated.TotalNeeds,
		"duration", p.stats.TotalDuration)

	return bundle, nil
}

// GetStats returns the cumulative run statistics.
func (p *Pipeline) GetStats() *models.RunStats {
	return p.stats
}

func (p *Pipeline) generatePersonas(ctx context.Context) ([]models.Persona, error) {
	if p.resumeMode && p.checkpointMgr != nil {
		cp := p.checkpointMgr.GetCheckpoint()
		if cp.PersonasComplete {
			p.logger.Info("Resuming from checkpoint: persona phase complete", "count", len(cp.Personas))
			return cp.Personas, nil
		}
	}

	count := p.cfg.Elicitation.UnitCount
	p.runLog.StartStage(metrics.StageAgentGeneration)
	personas, err := p.personas.GenerateAll(ctx, p.cfg.Elicitation.DesignContext, count, func(completed int) {
		p.progress.unit(metrics.StageAgentGeneration,
			fmt.Sprintf("Generated persona %d/%d", completed, count), completed)
	})
	p.runLog.EndStage(metrics.StageAgentGeneration, len(personas))
	if err != nil {
		return nil, err
	}

	if p.checkpointMgr != nil {
		if err := p.checkpointMgr.MarkPersonasComplete(personas); err != nil {
			p.logger.Warn("Failed to save persona checkpoint", "error", err)
		}
	}
	return personas, nil
}

// processUnit runs one persona's experience and interview. Shared by both
// strategies; failure handling differs at the call sites.
func (p *Pipeline) processUnit(ctx context.Context, job models.UnitJob) models.UnitResult {
	startTime := time.Now()
	result := models.UnitResult{
		PersonaID: job.PersonaID,
		Persona:   job.Persona.Description,
		Product:   job.Product,
	}

	p.progress.unit(unitStageExperience, fmt.Sprintf("Simulating experience for persona %d", job.PersonaID), job.PersonaID)
	exp, err := p.simulator.Simulate(ctx, job.Persona, job.Product)
	if err != nil {
		result.Err = err.Error()
		result.Duration = time.Since(startTime)
		return result
	}
	result.Experience = exp

	p.progress.unit(unitStageInterview, fmt.Sprintf("Interviewing persona %d", job.PersonaID), job.PersonaID)
	iv, err := p.interviewer.Conduct(ctx, job.Persona, job.Product, exp)
	if err != nil {
		result.Err = err.Error()
		result.Duration = time.Since(startTime)
		return result
	}
	result.Interview = iv

	result.Success = true
	result.Duration = time.Since(startTime)
	return result
}

func (p *Pipeline) markUnit(result models.UnitResult) {
	if result.Success {
		p.stats.SuccessCount++
	} else {
		p.stats.FailureCount++
	}
	if p.collector != nil {
		p.collector.IncrementUnits(result.Success)
	}
	if p.checkpointMgr != nil {
		if err := p.checkpointMgr.MarkUnitComplete(result, p.stats); err != nil {
			p.logger.Warn("Failed to checkpoint unit", "persona_id", result.PersonaID, "error", err)
		}
	}
	if result.Success {
		p.progress.unit(unitStageCompleted, fmt.Sprintf("Unit %d complete", result.PersonaID), result.PersonaID)
	} else {
		p.progress.unit(unitStageFailed, fmt.Sprintf("Unit %d failed: %s", result.PersonaID, result.Err), result.PersonaID)
	}
}

// extractNeeds runs extraction over the successful interviews. Unparseable
// responses degrade inside the extractor to zero-needs extractions, so every
// successful interview contributes an entry. A backend failure aborts the run
// under the serial strategy; under the parallel strategy it demotes the unit
// to failed and siblings keep their extractions.
func (p *Pipeline) extractNeeds(ctx context.Context, results []models.UnitResult, product string) ([]models.UnitExtraction, error) {
	p.runLog.StartStage(metrics.StageNeedExtraction)

	parallel := p.cfg.Elicitation.Strategy == models.StrategyParallel
	var extractions []models.UnitExtraction
	for i := range results {
		r := &results[i]
		if !r.Success {
			continue
		}
		extraction, err := p.extractor.ExtractFromInterview(ctx, r.PersonaID, r.Persona, product, r.Interview)
		if err != nil {
			if !parallel {
				p.runLog.EndStage(metrics.StageNeedExtraction, len(extractions))
				return nil, err
			}
			p.logger.Error("Need extraction failed for unit",
				"persona_id", r.PersonaID,
				"error", err)
			r.Success = false
			r.Err = err.Error()
			p.stats.SuccessCount--
			p.stats.FailureCount++
			p.progress.unit(unitStageFailed, fmt.Sprintf("Unit %d failed: %s", r.PersonaID, r.Err), r.PersonaID)
			continue
		}
		extractions = append(extractions, extraction)
	}
	p.runLog.EndStage(metrics.StageNeedExtraction, len(extractions))
	return extractions, nil
}

func (p *Pipeline) buildBundle(
	personas []models.Persona,
	experiences []models.ExperienceRecord,
	interviews []models.InterviewRecord,
	extractions []models.UnitExtraction,
	aggregated models.AggregatedNeeds,
	results []models.UnitResult,
	personaDuration, unitsDuration time.Duration,
) *models.ResultBundle {
	status := models.StatusCompleted
	var failedUnits []int
	var unitErrors map[int]string
	for _, r := range results {
		if r.Success {
			continue
		}
		if unitErrors == nil {
			unitErrors = make(map[int]string)
		}
		failedUnits = append(failedUnits, r.PersonaID)
		unitErrors[r.PersonaID] = r.Err
	}
	if len(failedUnits) > 0 {
		status = models.StatusCompletedWithErrors
	}

	summary := p.runLog.Summarize()

	return &models.ResultBundle{
		Metadata: models.RunMetadata{
			Product:       p.cfg.Elicitation.Product,
			DesignContext: p.cfg.Elicitation.DesignContext,
			UnitCount:     p.cfg.Elicitation.UnitCount,
			Strategy:      p.cfg.Elicitation.Strategy,
			StartTime:     p.stats.StartTime,
			EndTime:       p.stats.EndTime,
			Timing: models.RunTiming{
				PersonaGenerationSeconds: personaDuration.Seconds(),
				UnitProcessingSeconds:    unitsDuration.Seconds(),
				TotalSeconds:             p.stats.TotalDuration.Seconds(),
			},
			Status:      status,
			FailedUnits: failedUnits,
			UnitErrors:  unitErrors,
		},
		Personas:    personas,
		Experiences: experiences,
		Interviews:  interviews,
		Extractions: extractions,
		Aggregated:  aggregated,
		Metrics:     &summary,
	}
}

// writeOutputs persists the terminal artifacts to the session directory:
// the needs JSONL file, the run report, and the metrics summary.
func (p *Pipeline) writeOutputs(bundle *models.ResultBundle) error {
	if p.session == nil {
		return nil
	}

	needsWriter, err := writer.NewNeedsWriter(p.session.GetNeedsPath(), p.logger)
	if err != nil {
		return err
	}
	for _, extraction := range bundle.Extractions {
		if err := needsWriter.WriteExtraction(extraction); err != nil {
			needsWriter.Close()
			return err
		}
	}
	if err := needsWriter.Close(); err != nil {
		return err
	}

	report := struct {
		Metadata models.RunMetadata     `json:"metadata"`
		Needs    models.AggregatedNeeds `json:"aggregated_needs"`
	}{bundle.Metadata, bundle.Aggregated}
	if err := p.session.SaveJSON("report.json", report); err != nil {
		return err
	}

	return p.session.SaveJSON("metrics.json", bundle.Metrics)
}

func buildUnitJobs(personas []models.Persona, product string) []models.UnitJob {
	jobs := make([]models.UnitJob, 0, len(personas))
	for _, p := range personas {
		jobs = append(jobs, models.UnitJob{
			PersonaID: p.ID,
			Persona:   p,
			Product:   product,
		})
	}
	return jobs
}

func collectRecords(results []models.UnitResult) ([]models.ExperienceRecord, []models.InterviewRecord) {
	var experiences []models.ExperienceRecord
	var interviews []models.InterviewRecord
	for _, r := range results {
		if !r.Success {
			continue
		}
		if r.Experience != nil {
			experiences = append(experiences, *r.Experience)
		}
		if r.Interview != nil {
			interviews = append(interviews, *r.Interview)
		}
	}
	return experiences, interviews
}
