package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JsonlWriter appends values as JSON lines to a file, or to an io.Writer
// when path is "-".
type JsonlWriter struct {
	path string
	out  io.Writer
	mu   sync.Mutex
}

// NewJsonlWriter writes to path. "-" or "" writes to stdout.
func NewJsonlWriter(path string) *JsonlWriter {
	if path == "" || path == "-" {
		return &JsonlWriter{out: os.Stdout}
	}
	return &JsonlWriter{path: path}
}

// NewJsonlStream writes to w.
func NewJsonlStream(w io.Writer) *JsonlWriter {
	return &JsonlWriter{out: w}
}

// Write appends each element of records as one line.
func Write[T any](w *JsonlWriter, records []T) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dst := w.out
	if dst == nil {
		dir := filepath.Dir(w.path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer file.Close()
		dst = file
	}

	writer := bufio.NewWriter(dst)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
