package hfhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// LFSPointer identifies one file to upload through LFS.
type LFSPointer struct {
	OID  string `json:"oid"`  // SHA256 hex string
	Size int64  `json:"size"` // File size in bytes
}

// LFSUploadInfo carries the presigned upload target for one LFS object. An
// empty UploadURL means the object already exists on the server.
type LFSUploadInfo struct {
	OID       string
	Size      int64
	UploadURL string
	Header    map[string]string
}

type lfsBatchObject struct {
	OID     string      `json:"oid"`
	Size    int64       `json:"size"`
	Actions *lfsActions `json:"actions,omitempty"`
}

type lfsActions struct {
	Upload *lfsAction `json:"upload,omitempty"`
	Verify *lfsAction `json:"verify,omitempty"`
}

type lfsAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header"`
}

type lfsBatchRequest struct {
	Operation string           `json:"operation"`
	Transfers []string         `json:"transfers"`
	Objects   []lfsBatchObject `json:"objects"`
	HashAlgo  string           `json:"hash_algo"`
}

type lfsBatchResponse struct {
	Objects  []lfsBatchObject `json:"objects"`
	Transfer string           `json:"transfer,omitempty"`
}

// PreuploadLFS requests presigned upload URLs via the Git LFS batch API.
func (u *Uploader) PreuploadLFS(ctx context.Context, repoID string, files []LFSPointer) (map[string]*LFSUploadInfo, error) {
	if len(files) == 0 {
		return map[string]*LFSUploadInfo{}, nil
	}

	url := fmt.Sprintf("https://huggingface.co/datasets/%s.git/info/lfs/objects/batch", repoID)

	objects := make([]lfsBatchObject, len(files))
	for i, file := range files {
		objects[i] = lfsBatchObject{OID: file.OID, Size: file.Size}
	}
	payload := lfsBatchRequest{
		Operation: "upload",
		Transfers: []string{"basic"},
		Objects:   objects,
		HashAlgo:  "sha256",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/vnd.git-lfs+json")
	req.Header.Set("Accept", "application/vnd.git-lfs+json")

	u.logger.Debug("LFS batch request", "url", url, "file_count", len(files))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			u.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LFS batch failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var batchResp lfsBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		return nil, fmt.Errorf("failed to decode LFS batch response: %w", err)
	}

	uploadMap := make(map[string]*LFSUploadInfo)
	for _, obj := range batchResp.Objects {
		info := &LFSUploadInfo{OID: obj.OID, Size: obj.Size}
		// Nil actions means the object is already stored server-side
		if obj.Actions != nil && obj.Actions.Upload != nil {
			info.UploadURL = obj.Actions.Upload.Href
			info.Header = obj.Actions.Upload.Header
		}
		uploadMap[obj.OID] = info
	}

	u.logger.Info("LFS batch completed", "objects", len(uploadMap), "transfer", batchResp.Transfer)
	return uploadMap, nil
}

// UploadLFSFile uploads one file with a single presigned PUT.
func (u *Uploader) UploadLFSFile(ctx context.Context, uploadInfo *LFSUploadInfo, filePath string) error {
	if uploadInfo.UploadURL == "" {
		u.logger.Debug("LFS file already exists on server", "oid", uploadInfo.OID)
		return nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	fileInfo, err := file.Stat()
	if err != nil {
		return err
	}

	u.logger.Debug("Uploading LFS file", "oid", uploadInfo.OID, "size", fileInfo.Size())

	req, err := http.NewRequestWithContext(ctx, "PUT", uploadInfo.UploadURL, file)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = fileInfo.Size()
	for key, value := range uploadInfo.Header {
		req.Header.Set(key, value)
	}

	resp, err := u.lfsClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("LFS upload failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	u.logger.Info("LFS file uploaded", "oid", uploadInfo.OID, "size", fileInfo.Size())
	return nil
}

// PreuploadLFSWithRetry retries the batch request with exponential backoff.
func (u *Uploader) PreuploadLFSWithRetry(ctx context.Context, repoID string, files []LFSPointer, maxRetries int) (map[string]*LFSUploadInfo, error) {
	var lastErr error
	backoff := 2 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			u.logger.Warn("Retrying LFS preupload",
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, err := u.PreuploadLFS(ctx, repoID, files)
		if err == nil {
			return result, nil
		}
		lastErr = err
		u.logger.Warn("LFS preupload failed", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("preupload failed after %d attempts: %w", maxRetries+1, lastErr)
}

// UploadLFSFileWithRetry retries one object upload with exponential backoff.
func (u *Uploader) UploadLFSFileWithRetry(ctx context.Context, uploadInfo *LFSUploadInfo, filePath string, maxRetries int) error {
	var lastErr error
	backoff := 2 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			u.logger.Warn("Retrying LFS file upload",
				"file", filePath,
				"oid", uploadInfo.OID,
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := u.UploadLFSFile(ctx, uploadInfo, filePath)
		if err == nil {
			return nil
		}
		lastErr = err
		u.logger.Warn("LFS file upload failed", "file", filePath, "attempt", attempt, "error", err)
	}

	return fmt.Errorf("upload failed after %d attempts: %w", maxRetries+1, lastErr)
}
