package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Recorder is an append-only sink for user-authored input text. Failures are
// the caller's to ignore; recording is best-effort by contract.
type Recorder interface {
	Record(text string) error
}

// NopRecorder discards all input.
type NopRecorder struct{}

func (NopRecorder) Record(string) error { return nil }

// FileRecorder appends one line per input to a recent-input log, shell
// history style. Embedded newlines are escaped so each entry stays one line.
type FileRecorder struct {
	mu   sync.Mutex
	path string
}

// NewFileRecorder creates the log's parent directory if needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create input history dir: %w", err)
	}
	return &FileRecorder{path: path}, nil
}

func (r *FileRecorder) Record(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	line := strings.ReplaceAll(text, "\n", "\\n")

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

// Recent returns up to limit entries, most recent first.
func (r *FileRecorder) Recent(limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if lines[i] == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(lines[i], "\\n", "\n"))
	}
	return out, nil
}
