package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/devblac/event-listener/internal/event"
)

// File appends one JSON record per line to a path. The file is opened and
// closed for every record and is never truncated.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile builds a file sink.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink path required")
	}
	return &File{path: path}, nil
}

func (f *File) Name() string { return "file" }

// Path is the file the sink appends to.
func (f *File) Path() string { return f.path }

func (f *File) Send(_ context.Context, rec event.Record) error {
	line, err := rec.MarshalLine()
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	if _, err := fh.Write(line); err != nil {
		fh.Close()
		return fmt.Errorf("append %s: %w", f.path, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.path, err)
	}
	return nil
}
