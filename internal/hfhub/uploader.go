package hfhub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the timeout for general API operations
	DefaultTimeout = 300 * time.Second
	// LFSUploadTimeout is the timeout for LFS file uploads
	LFSUploadTimeout = 600 * time.Second
	// MaxRetries is the maximum number of retries for failed operations
	MaxRetries = 3
	// LogPreviewLength caps payload previews in debug logs
	LogPreviewLength = 500
)

// Uploader publishes elicitation session artifacts to Hugging Face Hub.
type Uploader struct {
	token      string
	httpClient *http.Client
	lfsClient  *http.Client
	logger     *slog.Logger
}

// NewUploader creates a Hugging Face Hub uploader.
func NewUploader(token string, logger *slog.Logger) *Uploader {
	return &Uploader{
		token: token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		lfsClient: &http.Client{
			Timeout: LFSUploadTimeout,
		},
		logger: logger.With("component", "hf_uploader"),
	}
}

// Upload publishes a session directory as a Hugging Face dataset using the
// commit API. The needs dataset, run report and metrics are uploaded together
// with a generated README dataset card; missing optional artifacts are
// skipped with a warning.
func Upload(ctx context.Context, sessionDir, repoID, token string, logger *slog.Logger) error {
	return NewUploader(token, logger).Upload(ctx, repoID, sessionDir)
}

// Upload uploads a session directory to the given dataset repository.
func (u *Uploader) Upload(ctx context.Context, repoID, sessionDir string) error {
	u.logger.Info("Publishing session to Hugging Face Hub",
		"repo_id", repoID,
		"session", filepath.Base(sessionDir))

	if err := u.createRepo(ctx, repoID); err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}

	// Local artifact name -> path in the dataset repo. The config backup is
	// renamed so readers see a loadable config, not a .bak file.
	artifacts := []struct {
		local    string
		repoPath string
		required bool
	}{
		{"needs.jsonl", "needs.jsonl", true},
		{"report.json", "report.json", true},
		{"metrics.json", "metrics.json", false},
		{"stability_report.json", "stability_report.json", false},
		{"config.toml.bak", "needforge.toml", false},
	}

	var operations []CommitOperation
	var lfsFiles []LFSPointer
	filePaths := make(map[string]string) // oid -> local path

	// .gitattributes keeps JSONL out of LFS so the Hub viewer renders it
	operations = append(operations, gitAttributesOperation())

	if card, err := buildDatasetCard(sessionDir, repoID); err != nil {
		u.logger.Warn("Could not build dataset card, continuing without README", "error", err)
	} else {
		operations = append(operations, embeddedOperation("README.md", card))
	}

	for _, artifact := range artifacts {
		localPath := filepath.Join(sessionDir, artifact.local)
		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			if artifact.required {
				return fmt.Errorf("session is missing required artifact %s", artifact.local)
			}
			u.logger.Warn("Artifact not found, skipping", "file", artifact.local)
			continue
		}

		op, err := PrepareFileOperation(localPath, artifact.repoPath)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", artifact.local, err)
		}
		operations = append(operations, *op)

		if op.LFSFile != nil {
			lfsFiles = append(lfsFiles, LFSPointer{OID: op.LFSFile.SHA256, Size: op.LFSFile.Size})
			filePaths[op.LFSFile.SHA256] = localPath
			u.logger.Debug("Artifact will use LFS", "file", artifact.repoPath, "size", op.LFSFile.Size)
		} else {
			u.logger.Debug("Artifact will be embedded", "file", artifact.repoPath)
		}
	}

	if len(lfsFiles) > 0 {
		u.logger.Info("Uploading LFS files", "count", len(lfsFiles))

		uploadMap, err := u.PreuploadLFSWithRetry(ctx, repoID, lfsFiles, MaxRetries)
		if err != nil {
			return fmt.Errorf("failed to preupload LFS: %w", err)
		}
		for oid, uploadInfo := range uploadMap {
			localPath := filePaths[oid]
			if err := u.UploadLFSFileWithRetry(ctx, uploadInfo, localPath, MaxRetries); err != nil {
				return fmt.Errorf("failed to upload LFS file %s: %w", localPath, err)
			}
		}
	}

	commitMsg := fmt.Sprintf("Upload elicitation results from session %s", filepath.Base(sessionDir))
	if err := u.createCommit(ctx, repoID, "main", operations, commitMsg); err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}

	u.logger.Info("Publish completed",
		"repo_id", repoID,
		"url", fmt.Sprintf("https://huggingface.co/datasets/%s", repoID))
	return nil
}

func (u *Uploader) createRepo(ctx context.Context, repoID string) error {
	checkURL := fmt.Sprintf("https://huggingface.co/api/datasets/%s", repoID)
	req, err := http.NewRequestWithContext(ctx, "GET", checkURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.httpClient.Do(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		_ = resp.Body.Close()
		u.logger.Info("Repository already exists", "repo_id", repoID)
		return nil
	}
	if resp != nil {
		_ = resp.Body.Close()
	}

	parts := strings.Split(repoID, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid repo_id format, expected 'username/reponame', got '%s'", repoID)
	}
	repoName := parts[1]

	payload := map[string]interface{}{
		"name":    repoName,
		"type":    "dataset",
		"private": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	createURL := "https://huggingface.co/api/repos/create"
	req, err = http.NewRequestWithContext(ctx, "POST", createURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/json")

	u.logger.Debug("Creating repository", "url", createURL, "name", repoName)

	resp, err = u.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			u.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	// 409 means another process created it between the check and create
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create repo failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	u.logger.Info("Repository created", "repo_id", repoID)
	return nil
}

// createCommit posts an NDJSON commit: one header line, then one line per
// file operation (embedded base64 content or an LFS pointer).
func (u *Uploader) createCommit(ctx context.Context, repoID, branch string, operations []CommitOperation, message string) error {
	url := fmt.Sprintf("https://huggingface.co/api/datasets/%s/commit/%s", repoID, branch)

	var ndjsonLines []string

	header := map[string]interface{}{
		"key": "header",
		"value": map[string]string{
			"summary":     message,
			"description": "",
		},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	ndjsonLines = append(ndjsonLines, string(headerJSON))

	for _, op := range operations {
		var fileLine map[string]interface{}
		if op.LFSFile != nil {
			fileLine = map[string]interface{}{
				"key": "lfsFile",
				"value": map[string]interface{}{
					"path": op.Path,
					"algo": "sha256",
					"oid":  op.LFSFile.SHA256,
					"size": op.LFSFile.Size,
				},
			}
		} else {
			fileLine = map[string]interface{}{
				"key": "file",
				"value": map[string]interface{}{
					"content":  op.Content,
					"path":     op.Path,
					"encoding": "base64",
				},
			}
		}
		fileJSON, err := json.Marshal(fileLine)
		if err != nil {
			return fmt.Errorf("failed to marshal operation for %s: %w", op.Path, err)
		}
		ndjsonLines = append(ndjsonLines, string(fileJSON))
	}

	ndjsonPayload := strings.Join(ndjsonLines, "\n")
	if len(ndjsonPayload) > LogPreviewLength {
		u.logger.Debug("Commit payload (NDJSON)", "preview", ndjsonPayload[:LogPreviewLength]+"...")
	} else {
		u.logger.Debug("Commit payload (NDJSON)", "preview", ndjsonPayload)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(ndjsonPayload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/x-ndjson")

	u.logger.Debug("Creating commit", "url", url, "operations", len(operations))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			u.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("commit failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	u.logger.Info("Commit created", "branch", branch, "operations", len(operations))
	return nil
}

func embeddedOperation(path, content string) CommitOperation {
	return CommitOperation{
		Operation: "add",
		Path:      path,
		Content:   base64.StdEncoding.EncodeToString([]byte(content)),
		Encoding:  "base64",
	}
}

// gitAttributesOperation pins the LFS patterns while keeping JSONL and JSON
// as regular text so the Hub dataset viewer can render the records.
func gitAttributesOperation() CommitOperation {
	content := `*.7z filter=lfs diff=lfs merge=lfs -text
*.arrow filter=lfs diff=lfs merge=lfs -text
*.bin filter=lfs diff=lfs merge=lfs -text
*.bz2 filter=lfs diff=lfs merge=lfs -text
*.gz filter=lfs diff=lfs merge=lfs -text
*.lz4 filter=lfs diff=lfs merge=lfs -text
*.npy filter=lfs diff=lfs merge=lfs -text
*.npz filter=lfs diff=lfs merge=lfs -text
*.parquet filter=lfs diff=lfs merge=lfs -text
*.pickle filter=lfs diff=lfs merge=lfs -text
*.pkl filter=lfs diff=lfs merge=lfs -text
*.tar.* filter=lfs diff=lfs merge=lfs -text
*.tar filter=lfs diff=lfs merge=lfs -text
*.tgz filter=lfs diff=lfs merge=lfs -text
*.xz filter=lfs diff=lfs merge=lfs -text
*.zip filter=lfs diff=lfs merge=lfs -text
*.zst filter=lfs diff=lfs merge=lfs -text
# JSONL and JSON artifacts stay regular text for the dataset viewer
`
	return embeddedOperation(".gitattributes", content)
}
