package transform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/nvoss/needforge/internal/api"
	"github.com/nvoss/needforge/internal/config"
	"github.com/nvoss/needforge/internal/metrics"
	"github.com/nvoss/needforge/internal/needs"
	"github.com/nvoss/needforge/internal/writer"
	"github.com/nvoss/needforge/pkg/models"
)

// Mode specifies what kind of session transform to perform.
type Mode string

const (
	// ModeReextract re-runs need extraction over a saved session's
	// interviews with the current extraction model and template.
	ModeReextract Mode = "reextract"
	// ModeReaggregate recomputes the aggregation and summary from the
	// existing needs file without any model calls.
	ModeReaggregate Mode = "reaggregate"
)

// Options controls session transformation behaviour.
type Options struct {
	Mode Mode

	// Concurrency controls how many interview re-extractions run in
	// parallel. Defaults to the configured elicitation concurrency.
	Concurrency int
}

type reportFile struct {
	Metadata models.RunMetadata     `json:"metadata"`
	Needs    models.AggregatedNeeds `json:"aggregated_needs"`
}

// Run transforms an existing session's needs artifacts in place.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	secrets *config.Secrets,
	client *api.Client,
	session *writer.SessionManager,
	opts Options,
) error {
	switch opts.Mode {
	case ModeReextract:
		if opts.Concurrency <= 0 {
			opts.Concurrency = cfg.Elicitation.Concurrency
			if opts.Concurrency <= 0 {
				opts.Concurrency = 4
			}
		}
		return runReextract(ctx, logger, cfg, secrets, client, session, opts)
	case ModeReaggregate:
		return runReaggregate(logger, session)
	default:
		return fmt.Errorf("unsupported transform mode: %s", opts.Mode)
	}
}

// runReextract loads the session's interviews and re-runs extraction over
// every exchange with a worker pool. A failed interview is skipped, not
// fatal: offline re-extraction is best-effort over whatever survives.
func runReextract(
	parentCtx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	secrets *config.Secrets,
	client *api.Client,
	session *writer.SessionManager,
	opts Options,
) error {
	var interviews []models.InterviewRecord
	if err := readJSONFile(session.GetArtifactPath("interviews.json"), &interviews); err != nil {
		return fmt.Errorf("failed to load interviews: %w", err)
	}
	if len(interviews) == 0 {
		logger.Info("No interviews found in session", "session", session.GetSessionDir())
		return nil
	}

	// Persona descriptions feed the extraction template; a session saved
	// without intermediate artifacts still re-extracts, just without them
	personaText := map[int]string{}
	var personas []models.Persona
	if err := readJSONFile(session.GetArtifactPath("personas.json"), &personas); err == nil {
		for _, p := range personas {
			personaText[p.ID] = p.Description
		}
	}

	report, err := loadReport(session)
	if err != nil {
		return err
	}
	product := report.Metadata.Product
	if product == "" {
		product = cfg.Elicitation.Product
	}

	extractionModel, ok := cfg.Models["extraction"]
	if !ok {
		return fmt.Errorf("config is missing 'extraction' model; it is required for re-extraction")
	}
	runLog := metrics.NewLog(nil, nil)
	backend := client.Generator(extractionModel, secrets.GetAPIKey(extractionModel.BaseURL))
	extractor := needs.NewExtractor(backend, cfg.Prompts.NeedExtraction, runLog, logger)

	workers := opts.Concurrency
	if workers > len(interviews) {
		workers = len(interviews)
	}
	logger.Info("Re-extracting needs",
		"interviews", len(interviews),
		"workers", workers,
		"model", extractionModel.ModelName)

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	jobCh := make(chan models.InterviewRecord)
	resultCh := make(chan models.UnitExtraction)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case iv, ok := <-jobCh:
					if !ok {
						return
					}
					extraction, err := extractor.ExtractFromInterview(ctx, iv.PersonaID, personaText[iv.PersonaID], product, &iv)
					if err != nil {
						logger.Warn("Re-extraction failed for interview",
							"persona_id", iv.PersonaID,
							"error", err)
						continue
					}
					select {
					case <-ctx.Done():
						return
					case resultCh <- extraction:
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, iv := range interviews {
			select {
			case <-ctx.Done():
				return
			case jobCh <- iv:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	bar := progressbar.Default(int64(len(interviews)), "Re-extracting")
	var extractions []models.UnitExtraction
	for extraction := range resultCh {
		extractions = append(extractions, extraction)
		_ = bar.Add(1)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sort.Slice(extractions, func(i, j int) bool {
		return extractions[i].PersonaID < extractions[j].PersonaID
	})

	aggregated := needs.Aggregate(extractions)
	logger.Info("Re-extraction complete",
		"interviews", len(interviews),
		"extracted_units", len(extractions),
		"needs", aggregated.TotalNeeds)

	return writeNeedsArtifacts(logger, session, report.Metadata, extractions, aggregated)
}

// runReaggregate rebuilds the report's aggregate view from the needs file
// alone. The unit count is carried over from the previous report since unit
// boundaries are not recoverable from the flattened records.
func runReaggregate(logger *slog.Logger, session *writer.SessionManager) error {
	records, err := readNeedsFile(session.GetNeedsPath())
	if err != nil {
		return err
	}

	report, err := loadReport(session)
	if err != nil {
		return err
	}

	aggregated := needs.AggregateRecords(records, report.Needs.TotalUnits)
	logger.Info("Re-aggregated needs",
		"records", len(records),
		"categories", len(aggregated.Categories))

	report.Needs = aggregated
	return session.SaveJSON("report.json", report)
}

func writeNeedsArtifacts(
	logger *slog.Logger,
	session *writer.SessionManager,
	metadata models.RunMetadata,
	extractions []models.UnitExtraction,
	aggregated models.AggregatedNeeds,
) error {
	needsWriter, err := writer.NewNeedsWriter(session.GetNeedsPath(), logger)
	if err != nil {
		return err
	}
	for _, extraction := range extractions {
		if err := needsWriter.WriteExtraction(extraction); err != nil {
			needsWriter.Close()
			return err
		}
	}
	if err := needsWriter.Close(); err != nil {
		return err
	}

	return session.SaveJSON("report.json", reportFile{Metadata: metadata, Needs: aggregated})
}

func loadReport(session *writer.SessionManager) (reportFile, error) {
	var report reportFile
	if err := readJSONFile(session.GetReportPath(), &report); err != nil {
		if os.IsNotExist(err) {
			return reportFile{}, nil
		}
		return reportFile{}, fmt.Errorf("failed to load report: %w", err)
	}
	return report, nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func readNeedsFile(path string) ([]models.NeedRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open needs file: %w", err)
	}
	defer file.Close()

	var records []models.NeedRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var rec models.NeedRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("invalid need record on line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read needs file: %w", err)
	}
	return records, nil
}
