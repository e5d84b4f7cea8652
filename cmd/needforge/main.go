package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nvoss/needforge/internal/api"
	"github.com/nvoss/needforge/internal/checkpoint"
	"github.com/nvoss/needforge/internal/config"
	"github.com/nvoss/needforge/internal/hfhub"
	"github.com/nvoss/needforge/internal/job"
	"github.com/nvoss/needforge/internal/metrics"
	"github.com/nvoss/needforge/internal/pipeline"
	"github.com/nvoss/needforge/internal/stability"
	"github.com/nvoss/needforge/internal/transform"
	"github.com/nvoss/needforge/internal/writer"
	"github.com/nvoss/needforge/pkg/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	verbose    bool

	flagProduct          string
	flagContext          string
	flagUnits            int
	flagStrategy         string
	flagConcurrency      int
	flagQuestionsFile    string
	flagSaveIntermediate bool

	uploadToHF bool
	hfRepoID   string

	stabilityIterations int
	sessionName         string
	reextractMode       string
	publishRepoID       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "needforge",
		Short: "needforge - Synthetic Requirements Elicitation Pipeline",
		Long: `needforge elicits product requirements from simulated user studies:
generated personas recall product experiences, answer structured interview
questions, and latent needs are extracted and aggregated from the transcripts.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the elicitation pipeline",
		Long: `Run the complete elicitation pipeline:
1. Generate a diverse persona set
2. Simulate a product experience per persona
3. Interview each persona about its experience
4. Extract and aggregate latent needs
5. Optional: Publish results to Hugging Face Hub`,
		RunE: runStudyCmd,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&uploadToHF, "upload-to-hf", false, "Publish results to Hugging Face Hub after the run")
	runCmd.Flags().StringVar(&hfRepoID, "hf-repo-id", "", "Hugging Face repository ID (e.g., username/dataset-name)")

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage checkpoints",
		Long:  "Manage pipeline checkpoints for resuming interrupted sessions",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all available checkpoint sessions",
		RunE:  listCheckpoints,
	}
	inspectCmd := &cobra.Command{
		Use:   "inspect <session-dir>",
		Short: "Inspect a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectCheckpoint,
	}
	resumeCmd := &cobra.Command{
		Use:   "resume <session-dir>",
		Short: "Resume an interrupted run from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeFromCheckpoint,
	}
	resumeCmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	resumeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	checkpointCmd.AddCommand(listCmd, inspectCmd, resumeCmd)

	stabilityCmd := &cobra.Command{
		Use:   "stability",
		Short: "Measure run-to-run stability",
		Long: `Run the full pipeline several times with identical inputs and score how
consistent the persona sets, need categories, priorities and interview
lengths are across runs. The report is saved as stability_report.json.`,
		RunE: runStability,
	}
	addRunFlags(stabilityCmd)
	stabilityCmd.Flags().IntVar(&stabilityIterations, "iterations", 3, "Number of identical runs to compare (minimum 2)")

	reextractCmd := &cobra.Command{
		Use:   "reextract",
		Short: "Re-run need extraction over a saved session",
		Long: `Rebuild a saved session's needs from its interview transcripts. Mode
"reextract" calls the extraction model again with the current templates;
mode "reaggregate" recomputes the aggregates from needs.jsonl without any
model calls.`,
		RunE: runReextract,
	}
	reextractCmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	reextractCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	reextractCmd.Flags().StringVar(&sessionName, "session", "", "Session directory name (e.g., session_2026-08-26T12-34-56)")
	reextractCmd.Flags().StringVar(&reextractMode, "mode", "reextract", "Transform mode: reextract or reaggregate")
	reextractCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Concurrent extraction calls (0 = config value)")
	reextractCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a session's results to Hugging Face Hub",
		RunE:  runPublish,
	}
	publishCmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	publishCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	publishCmd.Flags().StringVar(&sessionName, "session", "", "Session directory name to publish")
	publishCmd.Flags().StringVar(&publishRepoID, "repo", "", "Hugging Face repository ID (e.g., username/dataset-name)")
	publishCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(runCmd, checkpointCmd, stabilityCmd, reextractCmd, publishCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	cmd.Flags().StringVar(&flagProduct, "product", "", "Product under study (overrides config)")
	cmd.Flags().StringVar(&flagContext, "context", "", "Design context (overrides config)")
	cmd.Flags().IntVar(&flagUnits, "units", 0, "Number of persona units (overrides config)")
	cmd.Flags().StringVar(&flagStrategy, "strategy", "", "Execution strategy: serial or parallel (overrides config)")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", -1, "Max concurrent backend calls for the parallel strategy (overrides config)")
	cmd.Flags().StringVar(&flagQuestionsFile, "questions", "", "YAML file with interview questions (overrides config)")
	cmd.Flags().BoolVar(&flagSaveIntermediate, "save-intermediate", false, "Write per-stage JSON artifacts (overrides config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// loadConfigWithOverrides loads the config, env file, and applies any study
// flags the user set explicitly.
func loadConfigWithOverrides(cmd *cobra.Command) (*config.Config, *config.Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
			}
		} else if verbose {
			fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
		}
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("product") {
		cfg.Elicitation.Product = flagProduct
	}
	if flags.Changed("context") {
		cfg.Elicitation.DesignContext = flagContext
	}
	if flags.Changed("units") {
		cfg.Elicitation.UnitCount = flagUnits
	}
	if flags.Changed("strategy") {
		switch flagStrategy {
		case string(models.StrategySerial), string(models.StrategyParallel):
			cfg.Elicitation.Strategy = models.Strategy(flagStrategy)
		default:
			return nil, nil, fmt.Errorf("invalid strategy %q, expected serial or parallel", flagStrategy)
		}
	}
	if flags.Changed("concurrency") {
		cfg.Elicitation.Concurrency = flagConcurrency
	}
	if flags.Changed("questions") {
		cfg.Questions.File = flagQuestionsFile
		cfg.Questions.Inline = nil
	}
	if flags.Changed("save-intermediate") {
		cfg.Elicitation.SaveIntermediate = flagSaveIntermediate
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if verbose {
		for provider, key := range secrets.APIKeys {
			if key != "" {
				fmt.Fprintf(os.Stderr, "Loaded API key for: %s (length: %d)\n", provider, len(key))
			}
		}
	}
	return cfg, secrets, nil
}

func runStudyCmd(cmd *cobra.Command, args []string) error {
	cfg, secrets, err := loadConfigWithOverrides(cmd)
	if err != nil {
		return err
	}
	return runStudy(cfg, secrets)
}

// runStudy drives one elicitation job end to end: session, logger,
// checkpointing, the job manager, and optional publishing.
func runStudy(cfg *config.Config, secrets *config.Secrets) error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	resumeMode := cfg.Elicitation.ResumeFromSession != ""

	sessionMgr, err := writer.NewSessionManager(slog.Default(), cfg.Elicitation.OutputDir, cfg.Elicitation.ResumeFromSession)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	logger, logFile, err := writer.SetupLogger(sessionMgr, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		if logFile != nil {
			_ = logFile.Sync()
			_ = logFile.Close()
		}
	}()

	logger.Info("needforge starting",
		"version", Version,
		"config", configPath,
		"session_dir", sessionMgr.GetSessionDir(),
		"resume_mode", resumeMode)

	if !resumeMode {
		if err := sessionMgr.BackupConfig(configPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	questions, err := cfg.LoadQuestions()
	if err != nil {
		return fmt.Errorf("failed to load interview questions: %w", err)
	}

	apiClient := api.NewClient(logger)

	checkpointMgr, err := buildCheckpointManager(sessionMgr.GetSessionDir(), cfg, resumeMode, logger)
	if err != nil {
		return err
	}

	prices := metrics.DefaultPriceTable()
	if cfg.Pricing.File != "" {
		prices, err = metrics.LoadPriceTable(cfg.Pricing.File)
		if err != nil {
			return fmt.Errorf("failed to load price table: %w", err)
		}
	}
	collector := metrics.NewCollector(logger)
	runLog := metrics.NewLog(prices, collector)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pipe *pipeline.Pipeline
	runFunc := func(ctx context.Context, req job.Request, onProgress func(models.ProgressEvent)) (*models.ResultBundle, error) {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		unhook := context.AfterFunc(sigCtx, cancel)
		defer unhook()

		pipe = pipeline.New(cfg, secrets, apiClient, questions, sessionMgr, checkpointMgr, resumeMode,
			runLog, collector, progressLogger(logger, onProgress), logger)
		return pipe.Run(runCtx)
	}
	preflight := func(req job.Request) error {
		for _, role := range []string{config.ModelRoleAgent, config.ModelRoleInterview, config.ModelRoleExtraction} {
			if _, ok := cfg.Models[role]; !ok {
				return fmt.Errorf("config is missing the %q model table", role)
			}
		}
		if !secrets.HasAnyAPIKey() {
			logger.Warn("No API key configured; assuming a local backend without auth")
		}
		return nil
	}

	mgr := job.NewManager(runFunc, preflight, cfg.Elicitation.MaxUnits, logger)
	jobID, err := mgr.StartJob(job.Request{
		Product:       cfg.Elicitation.Product,
		DesignContext: cfg.Elicitation.DesignContext,
		UnitCount:     cfg.Elicitation.UnitCount,
		Strategy:      cfg.Elicitation.Strategy,
	})
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}

	if err := mgr.Wait(jobID); err != nil {
		if sigCtx.Err() != nil {
			sessionDirName := filepath.Base(sessionMgr.GetSessionDir())
			logger.Warn("Run interrupted - resume from checkpoint",
				"session_dir", sessionDirName,
				"resume_command", fmt.Sprintf("needforge checkpoint resume %s", sessionDirName))
			return fmt.Errorf("run interrupted (resume with: needforge checkpoint resume %s)", sessionDirName)
		}
		return err
	}

	bundle, err := mgr.GetResult(jobID)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	stats := pipe.GetStats()
	logger.Info("Elicitation complete",
		"status", bundle.Metadata.Status,
		"units", stats.TotalUnits,
		"successful", stats.SuccessCount,
		"failed", stats.FailureCount,
		"needs", stats.TotalNeeds,
		"duration", stats.TotalDuration,
		"session_dir", sessionMgr.GetSessionDir())
	if len(bundle.Metadata.FailedUnits) > 0 {
		logger.Warn("Some units failed", "persona_ids", bundle.Metadata.FailedUnits)
	}

	if uploadToHF {
		repoID := hfRepoID
		if repoID == "" {
			repoID = cfg.HuggingFace.RepoID
		}
		if repoID == "" {
			return fmt.Errorf("--hf-repo-id must be specified when using --upload-to-hf")
		}
		if secrets.HuggingFaceToken == "" {
			return fmt.Errorf("HUGGING_FACE_TOKEN environment variable must be set for publishing")
		}
		if err := hfhub.Upload(sigCtx, sessionMgr.GetSessionDir(), repoID, secrets.HuggingFaceToken, logger); err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
	}

	logger.Info("All done!")
	return nil
}

// progressLogger surfaces coarse stage transitions in the log while passing
// every event through to the job manager's callback.
func progressLogger(logger *slog.Logger, next func(models.ProgressEvent)) pipeline.ProgressFunc {
	return func(event models.ProgressEvent) {
		if event.UnitID == 0 {
			logger.Info("Stage", "stage", event.Stage, "percent", event.Percent, "message", event.Message)
		}
		if next != nil {
			next(event)
		}
	}
}

func buildCheckpointManager(sessionDir string, cfg *config.Config, resumeMode bool, logger *slog.Logger) (*checkpoint.Manager, error) {
	if !resumeMode {
		return checkpoint.NewManager(sessionDir, cfg, logger), nil
	}

	cp, err := checkpoint.Load(sessionDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.ValidateCheckpoint(cp, cfg); err != nil {
		return nil, fmt.Errorf("checkpoint validation failed: %w", err)
	}

	logger.Info("Loaded checkpoint",
		"phase", cp.CurrentPhase,
		"completed_units", checkpoint.GetCompletedCount(cp),
		"progress", fmt.Sprintf("%.1f%%", checkpoint.GetProgressPercentage(cp)))
	return checkpoint.NewManagerFromCheckpoint(sessionDir, cp, cfg, logger), nil
}

func runStability(cmd *cobra.Command, args []string) error {
	cfg, secrets, err := loadConfigWithOverrides(cmd)
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	sessionMgr, err := writer.NewSessionManager(slog.Default(), cfg.Elicitation.OutputDir, "")
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	logger, logFile, err := writer.SetupLogger(sessionMgr, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		if logFile != nil {
			_ = logFile.Sync()
			_ = logFile.Close()
		}
	}()

	questions, err := cfg.LoadQuestions()
	if err != nil {
		return fmt.Errorf("failed to load interview questions: %w", err)
	}
	apiClient := api.NewClient(logger)
	collector := metrics.NewCollector(logger)

	// Each iteration gets a fresh pipeline and metrics log so runs cannot
	// contaminate each other; only the final report touches the session dir.
	newRun := func() stability.RunIteration {
		runLog := metrics.NewLog(metrics.DefaultPriceTable(), collector)
		pipe := pipeline.New(cfg, secrets, apiClient, questions, nil, nil, false, runLog, collector, nil, logger)
		return pipe.Run
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := stability.NewRunner(newRun, sessionMgr, logger)
	report, err := runner.Run(ctx, stabilityIterations)
	if err != nil {
		return fmt.Errorf("stability testing failed: %w", err)
	}

	logger.Info("Stability testing complete",
		"iterations", stabilityIterations,
		"score", report.Metrics.Overall.Score,
		"rating", report.Metrics.Overall.Rating,
		"report", sessionMgr.GetStabilityReportPath())
	return nil
}

func runReextract(cmd *cobra.Command, args []string) error {
	if sessionName == "" {
		return fmt.Errorf("--session is required")
	}

	cfg, secrets, err := loadConfigWithOverrides(cmd)
	if err != nil {
		return err
	}
	if err := writer.ValidateSessionPath(cfg.Elicitation.OutputDir, sessionName); err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	sessionMgr, err := writer.NewSessionManager(logger, cfg.Elicitation.OutputDir, sessionName)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := transform.Options{
		Mode:        transform.Mode(reextractMode),
		Concurrency: flagConcurrency,
	}
	if err := transform.Run(ctx, logger, cfg, secrets, api.NewClient(logger), sessionMgr, opts); err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}

	logger.Info("Session transformed", "session", sessionMgr.GetSessionDir(), "mode", reextractMode)
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	if sessionName == "" {
		return fmt.Errorf("--session is required")
	}

	cfg, secrets, err := loadConfigWithOverrides(cmd)
	if err != nil {
		return err
	}

	repoID := publishRepoID
	if repoID == "" {
		repoID = cfg.HuggingFace.RepoID
	}
	if repoID == "" {
		return fmt.Errorf("--repo must be specified (or huggingface.repo_id set in config)")
	}
	if secrets.HuggingFaceToken == "" {
		return fmt.Errorf("HUGGING_FACE_TOKEN environment variable must be set for publishing")
	}
	if err := writer.ValidateSessionPath(cfg.Elicitation.OutputDir, sessionName); err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}

	outputDir := cfg.Elicitation.OutputDir
	if outputDir == "" {
		outputDir = "output"
	}
	sessionDir := filepath.Join(outputDir, sessionName)
	if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
		return fmt.Errorf("session directory not found: %s", sessionName)
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return hfhub.Upload(ctx, sessionDir, repoID, secrets.HuggingFaceToken, logger)
}

// listCheckpoints lists every session directory and its checkpoint state.
func listCheckpoints(cmd *cobra.Command, args []string) error {
	outputDir := "output"

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No output directory found. Run an elicitation first.")
			return nil
		}
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	type sessionInfo struct {
		name       string
		hasCheckpt bool
		phase      string
		progress   float64
	}
	var sessions []sessionInfo

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "session_") {
			continue
		}

		sessionPath := filepath.Join(outputDir, entry.Name())
		info := sessionInfo{name: entry.Name(), phase: "N/A"}
		if _, err := os.Stat(filepath.Join(sessionPath, checkpoint.CheckpointFilename)); err == nil {
			info.hasCheckpt = true
			if cp, err := checkpoint.Load(sessionPath, slog.Default()); err == nil {
				info.phase = string(cp.CurrentPhase)
				info.progress = checkpoint.GetProgressPercentage(cp)
			}
		}
		sessions = append(sessions, info)
	}

	if len(sessions) == 0 {
		fmt.Println("No session directories found.")
		return nil
	}

	fmt.Println("Available sessions:")
	fmt.Println()
	fmt.Printf("%-35s %-12s %-12s %s\n", "SESSION", "CHECKPOINT", "PHASE", "PROGRESS")
	fmt.Println(strings.Repeat("-", 80))
	for _, s := range sessions {
		checkpointStatus := "No"
		if s.hasCheckpt {
			checkpointStatus = "Yes"
		}
		fmt.Printf("%-35s %-12s %-12s %.1f%%\n", s.name, checkpointStatus, s.phase, s.progress)
	}
	return nil
}

// inspectCheckpoint displays detailed information about a checkpoint.
func inspectCheckpoint(cmd *cobra.Command, args []string) error {
	sessionDir := args[0]

	if err := writer.ValidateSessionPath("output", sessionDir); err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}
	fullPath := filepath.Join("output", sessionDir)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("session directory not found: %s", sessionDir)
	}

	cp, err := checkpoint.Load(fullPath, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	fmt.Printf("Checkpoint Information for: %s\n", sessionDir)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Session ID:          %s\n", cp.SessionID)
	fmt.Printf("Created At:          %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last Saved At:       %s\n", cp.LastSavedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Current Phase:       %s\n", cp.CurrentPhase)
	fmt.Printf("Product:             %s\n", cp.Product)
	fmt.Printf("Strategy:            %s\n", cp.Strategy)
	fmt.Printf("Config Hash:         %s\n", cp.ConfigHash)
	fmt.Println()

	fmt.Println("Phase Progress:")
	fmt.Printf("  Personas:          %s (%d generated)\n", statusStr(cp.PersonasComplete), len(cp.Personas))
	fmt.Printf("  Units:             %d / %d completed (%.1f%%)\n",
		checkpoint.GetCompletedCount(cp),
		checkpoint.GetTotalCount(cp),
		checkpoint.GetProgressPercentage(cp))
	fmt.Println()

	fmt.Println("Statistics:")
	fmt.Printf("  Total Units:       %d\n", cp.Stats.TotalUnits)
	fmt.Printf("  Successful:        %d\n", cp.Stats.SuccessCount)
	fmt.Printf("  Failed:            %d\n", cp.Stats.FailureCount)
	fmt.Printf("  Needs Extracted:   %d\n", cp.Stats.TotalNeeds)
	fmt.Printf("  Total Duration:    %s\n", cp.Stats.TotalDuration)
	fmt.Println()

	if cp.CurrentPhase != models.PhaseComplete {
		fmt.Println("To resume this session, run:")
		fmt.Printf("  needforge checkpoint resume %s\n", sessionDir)
	} else {
		fmt.Println("This session is complete.")
	}
	return nil
}

// resumeFromCheckpoint resumes an interrupted run.
func resumeFromCheckpoint(cmd *cobra.Command, args []string) error {
	sessionDir := args[0]

	if err := writer.ValidateSessionPath("output", sessionDir); err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}
	fullPath := filepath.Join("output", sessionDir)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("session directory not found: %s", sessionDir)
	}

	cp, err := checkpoint.Load(fullPath, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp.CurrentPhase == models.PhaseComplete {
		return fmt.Errorf("checkpoint is already complete, nothing to resume")
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := checkpoint.ValidateCheckpoint(cp, cfg); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}

	cfg.Elicitation.ResumeFromSession = sessionDir

	fmt.Printf("Resuming elicitation from checkpoint: %s\n", sessionDir)
	fmt.Printf("Phase: %s, Progress: %.1f%%\n", cp.CurrentPhase, checkpoint.GetProgressPercentage(cp))
	fmt.Println()

	return runStudy(cfg, secrets)
}

func statusStr(complete bool) string {
	if complete {
		return "Complete"
	}
	return "Pending"
}
