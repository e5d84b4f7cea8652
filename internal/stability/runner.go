package stability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/nvoss/needforge/internal/writer"
	"github.com/nvoss/needforge/pkg/models"
)

// RunIteration executes one full elicitation run.
type RunIteration func(ctx context.Context) (*models.ResultBundle, error)

// IterationOutcome records one iteration of the stability test.
type IterationOutcome struct {
	Iteration       int     `json:"iteration"`
	Success         bool    `json:"success"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
	TotalNeeds      int     `json:"total_needs,omitempty"`
}

// ReportMetadata describes the test as a whole.
type ReportMetadata struct {
	Product              string    `json:"product"`
	DesignContext        string    `json:"design_context"`
	UnitCount            int       `json:"unit_count"`
	Iterations           int       `json:"iterations"`
	SuccessfulIterations int       `json:"successful_iterations"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
}

// Report is the full stability test result, written to
// stability_report.json in the session directory.
type Report struct {
	Metadata ReportMetadata     `json:"metadata"`
	Runs     []IterationOutcome `json:"runs"`
	Metrics  Metrics            `json:"metrics"`
}

// Runner repeats full pipeline runs and measures how consistent their
// outputs are. Each iteration gets a fresh pipeline from the factory so no
// metrics or checkpoint state leaks between runs.
type Runner struct {
	newRun  func() RunIteration
	session *writer.SessionManager
	logger  *slog.Logger
}

// NewRunner creates a stability runner. session may be nil; the report is
// then only returned, not persisted.
func NewRunner(newRun func() RunIteration, session *writer.SessionManager, logger *slog.Logger) *Runner {
	return &Runner{
		newRun:  newRun,
		session: session,
		logger:  logger.With("component", "stability"),
	}
}

// Run executes iterations runs and computes consistency metrics over the
// successful ones. At least two must succeed.
func (r *Runner) Run(ctx context.Context, iterations int) (*Report, error) {
	if iterations < 2 {
		return nil, fmt.Errorf("stability testing needs at least 2 iterations, got %d", iterations)
	}

	r.logger.Info("Starting stability test", "iterations", iterations)
	startTime := time.Now()

	outcomes := make([]IterationOutcome, 0, iterations)
	var bundles []*models.ResultBundle
	var iterationDurations []time.Duration

	bar := progressbar.Default(int64(iterations), "Stability iterations")
	for i := 1; i <= iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(iterationDurations) > 0 {
			var sum time.Duration
			for _, d := range iterationDurations {
				sum += d
			}
			avg := sum / time.Duration(len(iterationDurations))
			eta := avg * time.Duration(iterations-i+1)
			r.logger.Info("Running iteration",
				"iteration", i,
				"total", iterations,
				"eta", eta.Round(time.Second))
		} else {
			r.logger.Info("Running iteration", "iteration", i, "total", iterations)
		}

		iterStart := time.Now()
		bundle, err := r.newRun()(ctx)
		duration := time.Since(iterStart)
		iterationDurations = append(iterationDurations, duration)

		outcome := IterationOutcome{
			Iteration:       i,
			DurationSeconds: duration.Seconds(),
		}
		if err != nil {
			r.logger.Error("Iteration failed", "iteration", i, "error", err)
			outcome.Error = err.Error()
		} else {
			outcome.Success = true
			outcome.TotalNeeds = bundle.Aggregated.TotalNeeds
			bundles = append(bundles, bundle)
			r.logger.Info("Iteration completed",
				"iteration", i,
				"duration", duration.Round(time.Millisecond),
				"needs", bundle.Aggregated.TotalNeeds)
		}
		outcomes = append(outcomes, outcome)
		_ = bar.Add(1)
	}

	if len(bundles) < 2 {
		return nil, fmt.Errorf("need at least 2 successful iterations to measure stability, got %d", len(bundles))
	}

	endTime := time.Now()
	first := bundles[0].Metadata
	report := &Report{
		Metadata: ReportMetadata{
			Product:              first.Product,
			DesignContext:        first.DesignContext,
			UnitCount:            first.UnitCount,
			Iterations:           iterations,
			SuccessfulIterations: len(bundles),
			StartTime:            startTime,
			EndTime:              endTime,
			TotalDurationSeconds: endTime.Sub(startTime).Seconds(),
		},
		Runs:    outcomes,
		Metrics: ComputeMetrics(bundles),
	}

	r.logger.Info("Stability test complete",
		"score", report.Metrics.Overall.Score,
		"rating", report.Metrics.Overall.Rating,
		"successful", len(bundles))

	if r.session != nil {
		if err := r.session.SaveJSON("stability_report.json", report); err != nil {
			return report, fmt.Errorf("failed to write stability report: %w", err)
		}
	}
	return report, nil
}
