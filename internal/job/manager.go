package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvoss/needforge/internal/config"
	"github.com/nvoss/needforge/pkg/models"
)

var (
	// ErrNotFound is returned for job IDs the manager has never seen or
	// has deleted.
	ErrNotFound = errors.New("job not found")
	// ErrNotReady is returned by GetResult before the job reaches a
	// terminal status.
	ErrNotReady = errors.New("job result not ready")
)

// Request is one elicitation run's inputs.
type Request struct {
	Product       string
	DesignContext string
	UnitCount     int
	Strategy      models.Strategy
}

// RunFunc executes one elicitation run, reporting progress through the
// callback. The manager does not know how runs are built; the caller wires
// the pipeline in.
type RunFunc func(ctx context.Context, req Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error)

// PreflightFunc checks run preconditions that go beyond input validation
// (model configuration, credentials). A non-nil error fails the job from
// Queued without it ever entering Processing.
type PreflightFunc func(req Request) error

// Stage order for the coarse progress index.
var stageIndex = map[string]int{
	"agent_generation":    0,
	"parallel_processing": 1,
	"need_extraction":     2,
	"completed":           3,
}

type record struct {
	mu        sync.RWMutex
	id        string
	product   string
	createdAt time.Time
	status    models.JobStatus
	progress  models.Progress
	partial   *models.ResultSnapshot
	bundle    *models.ResultBundle
	errText   string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager owns the job table and drives each run in its own goroutine.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*record
	run       RunFunc
	preflight PreflightFunc
	maxUnits  int
	logger    *slog.Logger
}

// NewManager creates a job manager. preflight may be nil.
func NewManager(run RunFunc, preflight PreflightFunc, maxUnits int, logger *slog.Logger) *Manager {
	if maxUnits <= 0 {
		maxUnits = config.DefaultMaxUnits
	}
	return &Manager{
		jobs:      make(map[string]*record),
		run:       run,
		preflight: preflight,
		maxUnits:  maxUnits,
		logger:    logger,
	}
}

// StartJob validates the request, registers a queued job, and starts the run
// in the background. Validation failures reject the request outright; no job
// record is created for them.
func (m *Manager) StartJob(req Request) (string, error) {
	if err := config.ValidateStudyInputs(req.Product, req.DesignContext); err != nil {
		return "", err
	}
	if err := config.ValidateUnitCount(req.UnitCount, m.maxUnits); err != nil {
		return "", err
	}
	if req.Strategy == "" {
		req.Strategy = models.StrategySerial
	}

	ctx, cancel := context.WithCancel(context.Background())
	rec := &record{
		id:        uuid.NewString(),
		product:   req.Product,
		createdAt: time.Now(),
		status:    models.StatusQueued,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[rec.id] = rec
	m.mu.Unlock()

	m.logger.Info("Job queued",
		"job_id", rec.id,
		"product", req.Product,
		"unit_count", req.UnitCount,
		"strategy", req.Strategy)

	go m.execute(ctx, rec, req)
	return rec.id, nil
}

func (m *Manager) execute(ctx context.Context, rec *record, req Request) {
	defer close(rec.done)
	defer rec.cancel()

	// Configuration problems fail the job straight from Queued
	if m.preflight != nil {
		if err := m.preflight(req); err != nil {
			m.logger.Error("Job preflight failed", "job_id", rec.id, "error", err)
			rec.mu.Lock()
			rec.status = models.StatusFailed
			rec.errText = err.Error()
			rec.mu.Unlock()
			return
		}
	}

	rec.mu.Lock()
	rec.status = models.StatusProcessing
	rec.mu.Unlock()

	bundle, err := m.run(ctx, req, func(event models.ProgressEvent) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if idx, ok := stageIndex[event.Stage]; ok {
			rec.progress = models.Progress{
				Stage:      event.Stage,
				StageIndex: idx,
				Message:    event.Message,
			}
		} else {
			rec.progress.UnitCursor = event.UnitID
			rec.progress.Message = event.Message
		}
		if event.Snapshot != nil {
			rec.partial = event.Snapshot
		}
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err != nil {
		m.logger.Error("Job failed", "job_id", rec.id, "error", err)
		rec.status = models.StatusFailed
		rec.errText = err.Error()
		return
	}

	rec.bundle = bundle
	rec.status = bundle.Metadata.Status
	m.logger.Info("Job finished", "job_id", rec.id, "status", rec.status)
}

// GetStatus returns a consistent snapshot of the job's current state.
func (m *Manager) GetStatus(jobID string) (models.JobSnapshot, error) {
	rec, err := m.lookup(jobID)
	if err != nil {
		return models.JobSnapshot{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return models.JobSnapshot{
		JobID:          rec.id,
		Status:         rec.status,
		Progress:       rec.progress,
		PartialResults: rec.partial,
		Error:          rec.errText,
	}, nil
}

// GetResult returns the terminal bundle. Jobs that have not finished yield
// ErrNotReady; failed jobs yield their error.
func (m *Manager) GetResult(jobID string) (*models.ResultBundle, error) {
	rec, err := m.lookup(jobID)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	switch rec.status {
	case models.StatusCompleted, models.StatusCompletedWithErrors:
		return rec.bundle, nil
	case models.StatusFailed:
		return nil, fmt.Errorf("job failed: %s", rec.errText)
	default:
		return nil, ErrNotReady
	}
}

// ListJobs returns summaries of every known job, oldest first.
func (m *Manager) ListJobs() []models.JobSummary {
	m.mu.Lock()
	records := make([]*record, 0, len(m.jobs))
	for _, rec := range m.jobs {
		records = append(records, rec)
	}
	m.mu.Unlock()

	summaries := make([]models.JobSummary, 0, len(records))
	for _, rec := range records {
		rec.mu.RLock()
		summaries = append(summaries, models.JobSummary{
			JobID:     rec.id,
			Status:    rec.status,
			Product:   rec.product,
			CreatedAt: rec.createdAt,
		})
		rec.mu.RUnlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

// DeleteJob cancels the job if still running and removes its record.
func (m *Manager) DeleteJob(jobID string) error {
	m.mu.Lock()
	rec, ok := m.jobs[jobID]
	if ok {
		delete(m.jobs, jobID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	rec.cancel()
	return nil
}

// Wait blocks until the job reaches a terminal status.
func (m *Manager) Wait(jobID string) error {
	rec, err := m.lookup(jobID)
	if err != nil {
		return err
	}
	<-rec.done

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	if rec.status == models.StatusFailed {
		return fmt.Errorf("job failed: %s", rec.errText)
	}
	return nil
}

func (m *Manager) lookup(jobID string) (*record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}
