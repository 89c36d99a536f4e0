// Package autoload discovers pipeline JSON files below a root directory and
// indexes their task definitions for the resolver.
package autoload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/compozy/taskref/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
)

// docKey identifies one version of a file on disk.
type docKey struct {
	path    string
	size    int64
	modTime int64
}

// Loader is the main orchestrator for loading pipeline files into an Index
type Loader struct {
	root       string
	config     *Config
	index      *Index
	discoverer FileDiscoverer
	docs       *lru.Cache[docKey, []pipeline.Definition]
}

// New creates a Loader for config. A nil index gets a fresh one.
func New(config *Config, index *Index) (*Loader, error) {
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if index == nil {
		index = NewIndex()
	}
	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, NewErrorf(err, ErrCodeDiscoveryFailed, "cannot resolve root %s", config.Root)
	}
	l := &Loader{
		root:       root,
		config:     config,
		index:      index,
		discoverer: NewFileDiscoverer(root),
	}
	if config.DocCacheSize > 0 {
		docs, err := lru.New[docKey, []pipeline.Definition](config.DocCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create document cache: %w", err)
		}
		l.docs = docs
	}
	return l, nil
}

// LoadResult contains the results of the loading operation
type LoadResult struct {
	FilesProcessed int         `json:"files_processed"`
	FilesCached    int         `json:"files_cached"`
	TasksLoaded    int         `json:"tasks_loaded"`
	Errors         []LoadError `json:"errors,omitempty"`
}

// LoadError represents an error that occurred during file loading
type LoadError struct {
	File  string `json:"file"`
	Error error  `json:"-"`
}

// Load discovers every pipeline file and replaces the index content. In
// strict mode the first failing file aborts the load and the index keeps
// its previous content.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	started := time.Now()
	defer func() {
		recordAutoloadDuration(ctx, time.Since(started))
	}()
	result, docs, err := l.load(ctx)
	if err != nil {
		return result, err
	}
	l.index.replace(docs)
	recordAutoloadTasks(ctx, result.TasksLoaded)
	logger.FromContext(ctx).Info("Pipeline files loaded",
		"files_processed", result.FilesProcessed,
		"files_cached", result.FilesCached,
		"tasks_loaded", result.TasksLoaded,
		"errors", len(result.Errors))
	return result, nil
}

// Validate performs a dry-run load that leaves the index untouched
func (l *Loader) Validate(ctx context.Context) (*LoadResult, error) {
	result, _, err := l.load(ctx)
	return result, err
}

// Discover returns the list of files that would be loaded
func (l *Loader) Discover(_ context.Context) ([]string, error) {
	files, err := l.discoverer.Discover(l.config.Include, l.config.Exclude)
	if err != nil {
		return nil, NewError(err, ErrCodeDiscoveryFailed, "file discovery failed")
	}
	return files, nil
}

// Index returns the index this loader fills
func (l *Loader) Index() *Index {
	return l.index
}

// Config returns the autoload configuration
func (l *Loader) Config() *Config {
	return l.config
}

// Root returns the absolute root directory
func (l *Loader) Root() string {
	return l.root
}

func (l *Loader) load(ctx context.Context) (*LoadResult, []fileDoc, error) {
	log := logger.FromContext(ctx)
	result := &LoadResult{Errors: make([]LoadError, 0)}
	files, err := l.Discover(ctx)
	if err != nil {
		log.Error("File discovery failed", "error", err)
		return result, nil, err
	}
	log.Debug("Discovered pipeline files", "count", len(files))
	docs := make([]fileDoc, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, nil, err
		}
		result.FilesProcessed++
		doc, cached, label, err := l.loadFile(file)
		if err != nil {
			recordAutoloadFileOutcome(ctx, autoloadOutcomeError)
			recordAutoloadError(ctx, label)
			result.Errors = append(result.Errors, LoadError{File: doc.path, Error: err})
			if l.config.Strict {
				return result, nil, NewErrorf(err, ErrCodeFileFailed, "failed to load %s (%d of %d)",
					doc.path, result.FilesProcessed, len(files))
			}
			log.Warn("Skipping invalid pipeline file", "file", doc.path, "error", err)
			continue
		}
		if cached {
			result.FilesCached++
			recordAutoloadFileOutcome(ctx, autoloadOutcomeCached)
		} else {
			recordAutoloadFileOutcome(ctx, autoloadOutcomeSuccess)
		}
		result.TasksLoaded += len(doc.defs)
		docs = append(docs, doc)
	}
	return result, docs, nil
}

// loadFile parses one file, reusing the cached definitions when the file
// has not changed since it was last read.
func (l *Loader) loadFile(file string) (fileDoc, bool, autoloadErrorLabel, error) {
	rel, err := l.relativePath(file)
	doc := fileDoc{path: rel}
	if err != nil {
		doc.path = file
		return doc, false, errorLabelSecurity, err
	}
	info, err := os.Stat(file)
	if err != nil {
		return doc, false, errorLabelRead, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	key := docKey{path: file, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if l.docs != nil {
		if defs, ok := l.docs.Get(key); ok {
			doc.defs = defs
			return doc, true, "", nil
		}
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return doc, false, errorLabelRead, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	defs, err := pipeline.ParseDocument(rel, data)
	if err != nil {
		return doc, false, errorLabelParse, err
	}
	if l.docs != nil {
		l.docs.Add(key, defs)
	}
	doc.defs = defs
	return doc, false, "", nil
}

// relativePath ensures the file stays inside the root and returns its
// slash-separated path relative to it.
func (l *Loader) relativePath(file string) (string, error) {
	absFile, err := filepath.Abs(file)
	if err != nil {
		return "", NewErrorf(err, ErrCodePathEscape, "cannot resolve %s", file)
	}
	rel, err := filepath.Rel(l.root, absFile)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", NewErrorf(errors.New("file path escapes root"), ErrCodePathEscape, "%s", absFile)
	}
	return filepath.ToSlash(rel), nil
}
