// Package transcript persists run transcripts and observation artifacts.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/uxagent/api/schemas"
)

// FileRecorder appends entries to a JSON Lines file, one object per line.
type FileRecorder struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

var _ schemas.Recorder = (*FileRecorder)(nil)

// NewFileRecorder opens path for appending, creating parent directories.
// A leading "~" is expanded to the home directory.
func NewFileRecorder(path string) (*FileRecorder, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding transcript path %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript directory: %w", err)
	}
	f, err := os.OpenFile(expanded, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening transcript file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &FileRecorder{path: expanded, file: f, enc: enc}, nil
}

// Path returns the expanded file path.
func (r *FileRecorder) Path() string { return r.path }

// Record writes entry as a single line. Lines are never rewritten.
func (r *FileRecorder) Record(_ context.Context, entry schemas.TranscriptEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return os.ErrClosed
	}
	if err := r.enc.Encode(entry); err != nil {
		return fmt.Errorf("writing transcript entry: %w", err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Sync()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file = nil
	return err
}

// MultiRecorder fans every entry out to several recorders.
type MultiRecorder []schemas.Recorder

var _ schemas.Recorder = MultiRecorder(nil)

// Record forwards entry to every recorder, even after one fails, and joins
// the errors.
func (m MultiRecorder) Record(ctx context.Context, entry schemas.TranscriptEntry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
