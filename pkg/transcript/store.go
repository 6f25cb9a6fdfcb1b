package transcript

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store defines the interface for transcript persistence backends.
type Store interface {
	// Append persists one encoded entry.
	Append(line []byte) error

	// Load retrieves every stored line.
	Load() ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}

// JSONLStore appends entries to a JSON Lines file.
type JSONLStore struct {
	fs   afero.Fs
	path string
}

// NewJSONLStore creates a store writing to path on fsys.
func NewJSONLStore(fsys afero.Fs, path string) *JSONLStore {
	return &JSONLStore{fs: fsys, path: path}
}

// Path returns the file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// Append writes line followed by a newline.
func (s *JSONLStore) Append(line []byte) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// Load reads the whole file. A missing file is not an error.
func (s *JSONLStore) Load() ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return data, nil
}

// Close is a no-op; the file is opened per append.
func (s *JSONLStore) Close() error {
	return nil
}

var _ Store = (*JSONLStore)(nil)
