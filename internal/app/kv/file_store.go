package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	storeDirMode    = 0o700
	storeFileMode   = 0o600
	tempFilePattern = ".session-*.toml.tmp"
)

// fileSchema is the on-disk layout:
//
//	[slots]
//	authToken = "eyJ..."
type fileSchema struct {
	Slots map[string]string `toml:"slots"`
}

// FileStore persists all keys in a single TOML file. Writes replace the file atomically.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}

	value, ok := doc.Slots[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *FileStore) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("kv: key is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Slots[key] = value

	return s.persist(doc)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Slots[key]; !ok {
		return nil
	}
	delete(doc.Slots, key)

	return s.persist(doc)
}

func (s *FileStore) load() (fileSchema, error) {
	doc := fileSchema{Slots: map[string]string{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read store file: %w", err)
	}

	if err := toml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode store file %q: %w", s.path, err)
	}
	if doc.Slots == nil {
		doc.Slots = map[string]string{}
	}

	return doc, nil
}

func (s *FileStore) persist(doc fileSchema) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), storeDirMode); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp store file: %w", err)
	}

	if err := tempFile.Chmod(storeFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp store file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}

	cleanup = false
	return nil
}
