package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"spreadsheet-data-cleaner/internal/models"
)

// Slot names a fixed file inside the upload folder
type Slot string

// Known slots
const (
	SlotTemplate Slot = models.TemplateFileName
	SlotMessy    Slot = models.MessyFileName
	SlotCleaned  Slot = models.CleanedFileName
	SlotRejected Slot = models.RejectedFileName
)

// FileSlots owns the upload folder. Every write to a slot (uploads and whole
// pipeline runs) holds the write lock, so at most one run touches the slots at
// a time; downloads hold the read lock.
type FileSlots struct {
	dir string
	mu  sync.RWMutex
}

// NewFileSlots creates the upload folder if needed
func NewFileSlots(dir string) (*FileSlots, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload folder %s: %w", dir, err)
	}
	return &FileSlots{dir: dir}, nil
}

// Dir returns the upload folder
func (s *FileSlots) Dir() string {
	return s.dir
}

// Path returns the absolute location of a slot
func (s *FileSlots) Path(slot Slot) string {
	return filepath.Join(s.dir, string(slot))
}

// Save replaces a slot's contents with r and returns the saved path
func (s *FileSlots) Save(slot Slot, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(slot, r)
}

func (s *FileSlots) saveLocked(slot Slot, r io.Reader) (string, error) {
	path := s.Path(slot)
	tmp, err := os.CreateTemp(s.dir, "."+string(slot)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", slot, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", slot, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", slot, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", slot, err)
	}
	return path, nil
}

// Exists reports whether a slot currently holds a file
func (s *FileSlots) Exists(slot Slot) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.existsLocked(slot)
}

// Open opens a slot for reading. The caller must close the file. A missing
// slot returns a NotFoundError.
func (s *FileSlots) Open(slot Slot) (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, err := os.Open(s.Path(slot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.NewNotFoundError("file", string(slot))
		}
		return nil, fmt.Errorf("failed to open %s: %w", slot, err)
	}
	return f, nil
}

// WithExclusive runs fn while holding the write lock
func (s *FileSlots) WithExclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// WithShared runs fn while holding the read lock
func (s *FileSlots) WithShared(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

func (s *FileSlots) existsLocked(slot Slot) bool {
	info, err := os.Stat(s.Path(slot))
	return err == nil && !info.IsDir()
}
