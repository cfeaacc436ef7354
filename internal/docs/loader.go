// Package docs loads collection source documents from disk. Each YAML file
// holds one collection with its nested encounters and mechanics.
package docs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raidwise/mechanics-server/internal/model"
)

var ErrNoDocuments = errors.New("no collection documents found")

// LoadResult reports the outcome of a corpus load.
type LoadResult struct {
	Collections []*model.Collection
	Failed      []FailedDoc
}

// FailedDoc records a document that was rejected during loading.
type FailedDoc struct {
	Path   string
	Reason string
}

// Loader reads and validates collection documents from a directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader for the given documents directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// LoadAll parses every .yaml/.yml file in the directory. Malformed documents
// are rejected per-file and reported in the result; the rest of the corpus
// still loads. Returns ErrNoDocuments only when the directory holds no
// candidate files at all.
func (l *Loader) LoadAll() (*LoadResult, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(l.dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, l.dir)
	}

	result := &LoadResult{}
	for _, path := range paths {
		col, err := LoadFile(path)
		if err != nil {
			l.logger.Warn("Rejected collection document", "path", path, "error", err)
			result.Failed = append(result.Failed, FailedDoc{Path: path, Reason: err.Error()})
			continue
		}
		result.Collections = append(result.Collections, col)
	}
	return result, nil
}

// LoadFile parses and validates a single collection document.
func LoadFile(path string) (*model.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var col model.Collection
	if err := yaml.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := col.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &col, nil
}

// Load adapts the loader to the store's corpus-loader contract. Per-file
// failures were already logged; only a corpus-level failure is returned.
func (l *Loader) Load(ctx context.Context) ([]*model.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := l.LoadAll()
	if err != nil {
		return nil, err
	}
	return result.Collections, nil
}
