package stability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nvoss/needforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stableBundle() *models.ResultBundle {
	return bundleWith(
		[]string{"**Name**: Ada\n**Age**: 70\n**Gender**: Female"},
		map[string]int{"Functional": 2},
		map[string]int{"High": 1, "Medium": 1},
		[]string{"The kettle must shut off automatically"},
		[]string{"It worked fine for me."},
	)
}

func TestRunnerComputesReport(t *testing.T) {
	calls := 0
	newRun := func() RunIteration {
		calls++
		return func(ctx context.Context) (*models.ResultBundle, error) {
			b := stableBundle()
			b.Metadata = models.RunMetadata{Product: "Smart Kettle", DesignContext: "elderly users", UnitCount: 1}
			return b, nil
		}
	}

	r := NewRunner(newRun, nil, testLogger())
	report, err := r.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if calls != 3 {
		t.Errorf("pipeline factory called %d times, want 3 (fresh run per iteration)", calls)
	}
	if report.Metadata.SuccessfulIterations != 3 {
		t.Errorf("successful iterations = %d, want 3", report.Metadata.SuccessfulIterations)
	}
	if report.Metadata.Product != "Smart Kettle" {
		t.Errorf("product = %q", report.Metadata.Product)
	}
	if len(report.Runs) != 3 {
		t.Errorf("runs = %d, want 3", len(report.Runs))
	}
	if report.Metrics.Overall.Rating != "Excellent" {
		t.Errorf("rating = %s for identical runs", report.Metrics.Overall.Rating)
	}
}

func TestRunnerToleratesPartialFailures(t *testing.T) {
	iteration := 0
	newRun := func() RunIteration {
		return func(ctx context.Context) (*models.ResultBundle, error) {
			iteration++
			if iteration == 2 {
				return nil, errors.New("backend unavailable")
			}
			return stableBundle(), nil
		}
	}

	r := NewRunner(newRun, nil, testLogger())
	report, err := r.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Metadata.SuccessfulIterations != 2 {
		t.Errorf("successful iterations = %d, want 2", report.Metadata.SuccessfulIterations)
	}
	if report.Runs[1].Success || report.Runs[1].Error == "" {
		t.Errorf("run 2 = %+v, want recorded failure", report.Runs[1])
	}
}

func TestRunnerNeedsTwoSuccesses(t *testing.T) {
	newRun := func() RunIteration {
		return func(ctx context.Context) (*models.ResultBundle, error) {
			return nil, errors.New("always fails")
		}
	}

	r := NewRunner(newRun, nil, testLogger())
	if _, err := r.Run(context.Background(), 3); err == nil {
		t.Fatal("expected error when fewer than 2 iterations succeed")
	}

	if _, err := r.Run(context.Background(), 1); err == nil {
		t.Fatal("expected error for iterations < 2")
	}
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	newRun := func() RunIteration {
		return func(ctx context.Context) (*models.ResultBundle, error) {
			return stableBundle(), nil
		}
	}

	r := NewRunner(newRun, nil, testLogger())
	if _, err := r.Run(ctx, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
