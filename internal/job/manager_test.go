package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nvoss/needforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validRequest() Request {
	return Request{
		Product:       "Smart Kettle",
		DesignContext: "Kitchen appliances for elderly users",
		UnitCount:     3,
		Strategy:      models.StrategyParallel,
	}
}

func completedBundle(status models.JobStatus) *models.ResultBundle {
	return &models.ResultBundle{
		Metadata: models.RunMetadata{Status: status},
	}
}

func TestStartJobAndWait(t *testing.T) {
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		onProgress(models.ProgressEvent{Stage: "agent_generation", Message: "Generating personas"})
		onProgress(models.ProgressEvent{Stage: "completed", Message: "Done", Percent: 100})
		return completedBundle(models.StatusCompleted), nil
	}
	m := NewManager(run, nil, 5, testLogger())

	jobID, err := m.StartJob(validRequest())
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	if jobID == "" {
		t.Fatal("StartJob returned an empty ID")
	}

	if err := m.Wait(jobID); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	snap, err := m.GetStatus(jobID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if snap.Status != models.StatusCompleted {
		t.Errorf("status = %s, want %s", snap.Status, models.StatusCompleted)
	}
	if snap.Progress.Stage != "completed" || snap.Progress.StageIndex != 3 {
		t.Errorf("progress = %+v, want terminal completed stage", snap.Progress)
	}

	bundle, err := m.GetResult(jobID)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if bundle.Metadata.Status != models.StatusCompleted {
		t.Errorf("bundle status = %s, want %s", bundle.Metadata.Status, models.StatusCompleted)
	}
}

func TestStartJobValidation(t *testing.T) {
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		t.Error("run must not be called for invalid requests")
		return nil, nil
	}
	m := NewManager(run, nil, 5, testLogger())

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty product", func(r *Request) { r.Product = "" }},
		{"empty design context", func(r *Request) { r.DesignContext = "" }},
		{"zero units", func(r *Request) { r.UnitCount = 0 }},
		{"too many units", func(r *Request) { r.UnitCount = 6 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if _, err := m.StartJob(req); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if got := len(m.ListJobs()); got != 0 {
		t.Errorf("rejected requests created %d job records", got)
	}
}

func TestPreflightFailureSkipsProcessing(t *testing.T) {
	var sawProcessing bool
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		sawProcessing = true
		return completedBundle(models.StatusCompleted), nil
	}
	preflight := func(req Request) error {
		return errors.New("no API key configured for agent model")
	}
	m := NewManager(run, preflight, 5, testLogger())

	jobID, err := m.StartJob(validRequest())
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}

	if err := m.Wait(jobID); err == nil {
		t.Fatal("Wait should surface the preflight failure")
	}
	if sawProcessing {
		t.Error("run executed despite preflight failure")
	}

	snap, _ := m.GetStatus(jobID)
	if snap.Status != models.StatusFailed {
		t.Errorf("status = %s, want %s", snap.Status, models.StatusFailed)
	}
	if !strings.Contains(snap.Error, "API key") {
		t.Errorf("error = %q, want the preflight message", snap.Error)
	}
}

func TestGetResultStates(t *testing.T) {
	release := make(chan struct{})
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		<-release
		return nil, errors.New("backend exploded")
	}
	m := NewManager(run, nil, 5, testLogger())

	jobID, err := m.StartJob(validRequest())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.GetResult(jobID); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady while running", err)
	}

	close(release)
	_ = m.Wait(jobID)

	if _, err := m.GetResult(jobID); err == nil || !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("err = %v, want run error", err)
	}

	if _, err := m.GetResult("no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := m.GetStatus("no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCompletedWithErrorsPassedThrough(t *testing.T) {
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		return completedBundle(models.StatusCompletedWithErrors), nil
	}
	m := NewManager(run, nil, 5, testLogger())

	jobID, _ := m.StartJob(validRequest())
	if err := m.Wait(jobID); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	snap, _ := m.GetStatus(jobID)
	if snap.Status != models.StatusCompletedWithErrors {
		t.Errorf("status = %s, want %s", snap.Status, models.StatusCompletedWithErrors)
	}
	if _, err := m.GetResult(jobID); err != nil {
		t.Errorf("GetResult should succeed for completed_with_errors: %v", err)
	}
}

func TestListJobsOrdering(t *testing.T) {
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		return completedBundle(models.StatusCompleted), nil
	}
	m := NewManager(run, nil, 5, testLogger())

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.StartJob(validRequest())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	for _, id := range ids {
		_ = m.Wait(id)
	}

	summaries := m.ListJobs()
	if len(summaries) != 3 {
		t.Fatalf("ListJobs = %d entries, want 3", len(summaries))
	}
	for i, s := range summaries {
		if s.JobID != ids[i] {
			t.Errorf("summary[%d] = %s, want %s (oldest first)", i, s.JobID, ids[i])
		}
		if s.Product != "Smart Kettle" {
			t.Errorf("summary product = %q", s.Product)
		}
	}
}

func TestDeleteJobCancelsRun(t *testing.T) {
	started := make(chan struct{})
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m := NewManager(run, nil, 5, testLogger())

	jobID, err := m.StartJob(validRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-started

	if err := m.DeleteJob(jobID); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}
	if _, err := m.GetStatus(jobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted job still visible: %v", err)
	}
	if err := m.DeleteJob(jobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestConcurrentStatusPolling(t *testing.T) {
	run := func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		for i := 1; i <= 50; i++ {
			onProgress(models.ProgressEvent{Stage: "experience", UnitID: i, Message: "unit running"})
		}
		return completedBundle(models.StatusCompleted), nil
	}
	m := NewManager(run, nil, 5, testLogger())

	jobID, err := m.StartJob(validRequest())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := m.GetStatus(jobID); err != nil {
					t.Errorf("GetStatus failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	_ = m.Wait(jobID)
}
