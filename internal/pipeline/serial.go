package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/nvoss/needforge/internal/metrics"
	"github.com/nvoss/needforge/pkg/models"
)

// runSerial processes units one at a time in ascending persona-ID order:
// every experience first, then every interview. Any failure aborts the run.
func (p *Pipeline) runSerial(ctx context.Context, jobs []models.UnitJob) ([]models.UnitResult, error) {
	p.logger.Info("Processing units serially", "count", len(jobs))

	type unitState struct {
		job        models.UnitJob
		start      time.Time
		experience *models.ExperienceRecord
	}

	states := make([]unitState, 0, len(jobs))

	p.runLog.StartStage(metrics.StageExperienceSimulation)
	for _, job := range jobs {
		p.progress.unit(unitStageExperience,
			fmt.Sprintf("Simulating experience for persona %d", job.PersonaID), job.PersonaID)

		start := time.Now()
		exp, err := p.simulator.Simulate(ctx, job.Persona, job.Product)
		if err != nil {
			p.runLog.EndStage(metrics.StageExperienceSimulation, len(states))
			return nil, fmt.Errorf("experience simulation failed for persona %d: %w", job.PersonaID, err)
		}
		states = append(states, unitState{job: job, start: start, experience: exp})
	}
	p.runLog.EndStage(metrics.StageExperienceSimulation, len(states))

	results := make([]models.UnitResult, 0, len(states))

	p.runLog.StartStage(metrics.StageInterviews)
	for _, st := range states {
		p.progress.unit(unitStageInterview,
			fmt.Sprintf("Interviewing persona %d", st.job.PersonaID), st.job.PersonaID)

		iv, err := p.interviewer.Conduct(ctx, st.job.Persona, st.job.Product, st.experience)
		if err != nil {
			p.runLog.EndStage(metrics.StageInterviews, len(results))
			return nil, fmt.Errorf("interview failed for persona %d: %w", st.job.PersonaID, err)
		}

		result := models.UnitResult{
			PersonaID:  st.job.PersonaID,
			Persona:    st.job.Persona.Description,
			Product:    st.job.Product,
			Success:    true,
			Experience: st.experience,
			Interview:  iv,
			Duration:   time.Since(st.start),
		}
		p.markUnit(result)
		results = append(results, result)
	}
	p.runLog.EndStage(metrics.StageInterviews, len(results))

	return results, nil
}
