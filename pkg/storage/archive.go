// Package storage archives imported statement documents on the local
// filesystem so a failed or disputed import can be replayed from the
// original bytes.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentInfo contains metadata about an archived document
type DocumentInfo struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Path       string    `json:"path"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archive stores and retrieves original statement documents
type Archive interface {
	// Store writes the document bytes under the account's directory
	Store(ctx context.Context, accountID uuid.UUID, filename string, r io.Reader) (*DocumentInfo, error)

	// Open returns a reader for a previously archived document
	Open(ctx context.Context, accountID uuid.UUID, docID uuid.UUID) (io.ReadCloser, error)

	// List returns all archived documents for an account
	List(ctx context.Context, accountID uuid.UUID) ([]*DocumentInfo, error)
}

// LocalArchive implements Archive on the local filesystem
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates the archive root if needed
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Store writes the document bytes under the account's directory
func (a *LocalArchive) Store(ctx context.Context, accountID uuid.UUID, filename string, r io.Reader) (*DocumentInfo, error) {
	docID := uuid.New()

	accountDir := filepath.Join(a.basePath, accountID.String())
	if err := os.MkdirAll(accountDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create account directory: %w", err)
	}

	storedName := fmt.Sprintf("%s_%s", docID.String()[:8], sanitizeFilename(filename))
	path := filepath.Join(accountDir, storedName)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write archive file: %w", err)
	}

	return &DocumentInfo{
		ID:         docID,
		Name:       filename,
		Size:       size,
		Path:       storedName,
		ArchivedAt: time.Now(),
	}, nil
}

// Open returns a reader for a previously archived document
func (a *LocalArchive) Open(ctx context.Context, accountID uuid.UUID, docID uuid.UUID) (io.ReadCloser, error) {
	accountDir := filepath.Join(a.basePath, accountID.String())

	entries, err := os.ReadDir(accountDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	prefix := docID.String()[:8] + "_"
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			return os.Open(filepath.Join(accountDir, e.Name()))
		}
	}

	return nil, fmt.Errorf("document %s not found", docID)
}

// List returns all archived documents for an account
func (a *LocalArchive) List(ctx context.Context, accountID uuid.UUID) ([]*DocumentInfo, error) {
	accountDir := filepath.Join(a.basePath, accountID.String())

	entries, err := os.ReadDir(accountDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var docs []*DocumentInfo
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		if i := strings.Index(name, "_"); i > 0 {
			name = name[i+1:]
		}
		docs = append(docs, &DocumentInfo{
			Name:       name,
			Size:       info.Size(),
			Path:       e.Name(),
			ArchivedAt: info.ModTime(),
		})
	}
	return docs, nil
}

// sanitizeFilename strips path components and unsafe characters
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filename)
	if filename == "" || filename == "." {
		return "document"
	}
	return filename
}
