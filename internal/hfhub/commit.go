package hfhub

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
)

// CommitOperation is one file entry in an NDJSON commit.
type CommitOperation struct {
	Operation string       `json:"operation"` // "add"
	Path      string       `json:"path"`
	Content   string       `json:"content,omitempty"`  // base64, embedded files only
	Encoding  string       `json:"encoding,omitempty"` // "base64"
	LFSFile   *LFSFileInfo `json:"lfsFile,omitempty"`  // set for large files
}

// LFSFileInfo identifies a file that goes through LFS instead of being
// embedded in the commit payload.
type LFSFileInfo struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// LFSThreshold is the size above which files upload through LFS (10MB).
const LFSThreshold = 10 * 1024 * 1024

// PrepareFileOperation builds the commit operation for one local file:
// small files are embedded as base64, large ones become LFS pointers.
func PrepareFileOperation(localPath, pathInRepo string) (*CommitOperation, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	op := &CommitOperation{
		Operation: "add",
		Path:      pathInRepo,
	}

	if info.Size() < LFSThreshold {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		op.Content = base64.StdEncoding.EncodeToString(data)
		op.Encoding = "base64"
		return op, nil
	}

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return nil, err
	}
	op.LFSFile = &LFSFileInfo{
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
		Size:   size,
	}
	return op, nil
}
