package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// File is a durable store that keeps every record in a single YAML document.
// The document is re-read on each Get, so writes made by another process are
// observed. Writes replace the file atomically.
type File struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Records map[string]token.Record `yaml:"records"`

	// corrupt marks a document that replaced an unparseable file.
	corrupt bool
}

// errCorruptDocument wraps parse failures so writers can recover from them.
var errCorruptDocument = errors.New("token store document is corrupt")

// NewFile creates a file store at path. The file is created on the first
// Set; its parent directory must exist.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file store path must not be empty")
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("file store directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file store parent %s is not a directory", dir)
	}

	return &File{path: path}, nil
}

func (f *File) Get(ctx context.Context, key string) (token.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, false, err
	}

	record, ok := doc.Records[key]
	if !ok {
		return nil, false, nil
	}

	return record, true, nil
}

func (f *File) Set(ctx context.Context, key string, record token.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForWrite()
	if err != nil {
		return err
	}

	doc.Records[key] = record.Clone()

	return f.write(doc)
}

func (f *File) Invalidate(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readForWrite()
	if err != nil {
		return err
	}

	if _, ok := doc.Records[key]; !ok && !doc.corrupt {
		return nil
	}

	delete(doc.Records, key)

	return f.write(doc)
}

func (f *File) Close() error {
	return nil
}

// read loads the document. A missing file is an empty document.
func (f *File) read() (fileDocument, error) {
	doc := fileDocument{}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc.Records = map[string]token.Record{}
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read token store: %w", err)
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: failed to parse token store %s: %w", errCorruptDocument, f.path, err)
	}

	if doc.Records == nil {
		doc.Records = map[string]token.Record{}
	}

	return doc, nil
}

// readForWrite loads the document for modification. An unparseable file is
// replaced by an empty document so the next write overwrites it.
func (f *File) readForWrite() (fileDocument, error) {
	doc, err := f.read()
	if errors.Is(err, errCorruptDocument) {
		log.Warn().Err(err).Str("path", f.path).Msg("token store is corrupt, discarding its contents")
		return fileDocument{Records: map[string]token.Record{}, corrupt: true}, nil
	}

	return doc, err
}

func (f *File) write(doc fileDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal token store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".token-store-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary token store: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to restrict token store permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write token store: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write token store: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace token store: %w", err)
	}

	return nil
}
