package hfhub

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareFileOperationEmbedsSmallFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	content := []byte(`{"metadata": {"product": "Smart Kettle"}}`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	op, err := PrepareFileOperation(path, "report.json")
	if err != nil {
		t.Fatalf("PrepareFileOperation: %v", err)
	}
	if op.Operation != "add" || op.Path != "report.json" {
		t.Errorf("op = %+v, want add report.json", op)
	}
	if op.LFSFile != nil {
		t.Error("small file should not use LFS")
	}
	if op.Encoding != "base64" {
		t.Errorf("encoding = %q, want base64", op.Encoding)
	}
	decoded, err := base64.StdEncoding.DecodeString(op.Content)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if !bytes.Equal(decoded, content) {
		t.Errorf("decoded content = %q, want %q", decoded, content)
	}
}

func TestPrepareFileOperationUsesLFSForLargeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "needs.jsonl")
	data := bytes.Repeat([]byte(`{"category":"Functional"}`+"\n"), LFSThreshold/26+1)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	op, err := PrepareFileOperation(path, "needs.jsonl")
	if err != nil {
		t.Fatalf("PrepareFileOperation: %v", err)
	}
	if op.LFSFile == nil {
		t.Fatal("large file should use LFS")
	}
	if op.Content != "" {
		t.Error("LFS file should not embed content")
	}
	if op.LFSFile.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", op.LFSFile.Size, len(data))
	}
	if len(op.LFSFile.SHA256) != 64 {
		t.Errorf("sha256 length = %d, want 64 hex chars", len(op.LFSFile.SHA256))
	}
}

func TestPrepareFileOperationMissingFile(t *testing.T) {
	if _, err := PrepareFileOperation(filepath.Join(t.TempDir(), "absent"), "absent"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGitAttributesKeepsJSONLAsText(t *testing.T) {
	op := gitAttributesOperation()
	if op.Path != ".gitattributes" {
		t.Errorf("path = %q, want .gitattributes", op.Path)
	}
	decoded, err := base64.StdEncoding.DecodeString(op.Content)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if bytes.Contains(decoded, []byte("*.jsonl")) {
		t.Error(".gitattributes must not route JSONL through LFS")
	}
	if !bytes.Contains(decoded, []byte("*.parquet filter=lfs")) {
		t.Error("expected standard LFS patterns")
	}
}
