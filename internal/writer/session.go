package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SessionManager manages session directories and files
type SessionManager struct {
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a new session manager under outputDir. With
// resumeFromSession set, the existing session directory is reused; otherwise
// a fresh timestamped directory is created.
func NewSessionManager(logger *slog.Logger, outputDir, resumeFromSession string) (*SessionManager, error) {
	if outputDir == "" {
		outputDir = "output"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var sessionDir string
	if resumeFromSession != "" {
		// Resume mode: use existing session directory
		sessionDir = filepath.Join(outputDir, resumeFromSession)
		if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("session directory not found: %s", sessionDir)
		}
		logger.Info("Resuming from existing session", "path", sessionDir)
	} else {
		// New session: create timestamped directory
		timestamp := time.Now().Format("2006-01-02T15-04-05")
		sessionDir = filepath.Join(outputDir, "session_"+timestamp)

		if err := os.MkdirAll(sessionDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}

		logger.Info("Created new session directory", "path", sessionDir)
	}

	return &SessionManager{
		sessionDir: sessionDir,
		logger:     logger,
	}, nil
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetNeedsPath returns the full path to the extracted-needs JSONL file
func (sm *SessionManager) GetNeedsPath() string {
	return filepath.Join(sm.sessionDir, "needs.jsonl")
}

// GetReportPath returns the full path to the run report
func (sm *SessionManager) GetReportPath() string {
	return filepath.Join(sm.sessionDir, "report.json")
}

// GetMetricsPath returns the full path to the metrics summary
func (sm *SessionManager) GetMetricsPath() string {
	return filepath.Join(sm.sessionDir, "metrics.json")
}

// GetStabilityReportPath returns the full path to the stability report
func (sm *SessionManager) GetStabilityReportPath() string {
	return filepath.Join(sm.sessionDir, "stability_report.json")
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, "session.log")
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, "config.toml.bak")
}

// GetArtifactPath returns the path of a named intermediate artifact
// (personas.json, experiences.json, interviews.json)
func (sm *SessionManager) GetArtifactPath(name string) string {
	return filepath.Join(sm.sessionDir, name)
}

// BackupConfig copies the config file to the session directory
func (sm *SessionManager) BackupConfig(configPath string) error {
	source, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	backupPath := sm.GetConfigBackupPath()
	if err := os.WriteFile(backupPath, source, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}

	sm.logger.Info("Backed up config file", "path", backupPath)
	return nil
}

// SaveJSON writes v as indented JSON to a named file in the session
// directory, atomically via temp file and rename.
func (sm *SessionManager) SaveJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(sm.sessionDir, name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", name, err)
	}

	sm.logger.Debug("Saved session artifact", "path", path, "bytes", len(data))
	return nil
}
