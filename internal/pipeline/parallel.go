package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/nvoss/needforge/internal/api"
	"github.com/nvoss/needforge/pkg/models"
	"github.com/schollz/progressbar/v3"
)

// gatedBackend throttles model calls through a counting semaphore shared by
// every unit-stage backend. The semaphore bounds in-flight calls, not units:
// a unit waiting between questions holds no slot.
type gatedBackend struct {
	inner api.Backend
	sem   chan struct{}
}

func (b *gatedBackend) Generate(ctx context.Context, prompt string) (api.Generation, error) {
	if b.sem != nil {
		select {
		case b.sem <- struct{}{}:
			defer func() { <-b.sem }()
		case <-ctx.Done():
			return api.Generation{}, ctx.Err()
		}
	}
	return b.inner.Generate(ctx, prompt)
}

// runParallel processes units concurrently with per-unit failure isolation:
// a failed unit becomes an unsuccessful result, siblings keep running, and
// the executor waits for every unit before returning results sorted by
// persona ID.
func (p *Pipeline) runParallel(ctx context.Context, jobs []models.UnitJob) ([]models.UnitResult, error) {
	workerCount := p.cfg.Elicitation.Concurrency
	if workerCount <= 0 || workerCount > len(jobs) {
		// Concurrency 0 means unbounded: one goroutine per unit
		workerCount = len(jobs)
	}
	if workerCount == 0 {
		return nil, nil
	}

	p.logger.Info("Processing units in parallel",
		"count", len(jobs),
		"workers", workerCount)

	jobsChan := make(chan models.UnitJob, len(jobs))
	resultsChan := make(chan models.UnitResult, len(jobs))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go p.unitWorker(ctx, i, jobsChan, resultsChan, &wg)
	}
	if p.collector != nil {
		p.collector.SetActiveWorkers(workerCount)
		p.collector.SetUnitQueueDepth(len(jobs))
	}

	for _, job := range jobs {
		jobsChan <- job
	}
	close(jobsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]models.UnitResult, 0, len(jobs))
	bar := progressbar.Default(int64(len(jobs)), "Processing units")
	for result := range resultsChan {
		p.markUnit(result)
		results = append(results, result)
		_ = bar.Add(1)
		if p.collector != nil {
			p.collector.SetUnitQueueDepth(len(jobs) - len(results))
		}
	}
	if p.collector != nil {
		p.collector.SetActiveWorkers(0)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PersonaID < results[j].PersonaID
	})

	return results, nil
}

func (p *Pipeline) unitWorker(
	ctx context.Context,
	workerID int,
	jobs <-chan models.UnitJob,
	results chan<- models.UnitResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	workerLogger := p.logger.With("worker_id", workerID)
	workerLogger.Debug("Unit worker started")

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- models.UnitResult{
				PersonaID: job.PersonaID,
				Persona:   job.Persona.Description,
				Product:   job.Product,
				Err:       ctx.Err().Error(),
			}
			continue
		default:
		}

		result := p.processUnit(ctx, job)
		if !result.Success {
			workerLogger.Error("Unit failed",
				"persona_id", job.PersonaID,
				"error", result.Err)
		}
		results <- result
	}

	workerLogger.Debug("Unit worker finished")
}
