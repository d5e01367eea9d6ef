// Package canonical reads and writes the flat predicted/observed table shared
// by every source format.
package canonical

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/KaramelBytes/predobs-cli/internal/extract"
	"github.com/google/uuid"
)

// Header is the fixed first line of every canonical file.
var Header = []string{"FileName", "VariableName", "Predicted", "Observed"}

// ErrClosed is returned when writing to a committed or aborted Writer.
var ErrClosed = errors.New("canonical writer closed")

// Writer streams observations to a temporary file next to the target and
// renames it into place on Commit, so the target is never half-written.
type Writer struct {
	path string
	tmp  string
	f    *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows int
}

// Create opens a writer for path and writes the header.
func Create(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	buf := bufio.NewWriter(f)
	w := &Writer{path: path, tmp: tmp, f: f, buf: buf, csv: csv.NewWriter(buf)}
	if err := w.csv.Write(Header); err != nil {
		w.Abort()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// Write appends one row. The first column carries the observation's model name.
func (w *Writer) Write(o extract.Observation) error {
	if w.f == nil {
		return ErrClosed
	}
	rec := []string{o.Model, o.Variable, FormatFloat(o.Predicted), FormatFloat(o.Observed)}
	if err := w.csv.Write(rec); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

// Path returns the final output path.
func (w *Writer) Path() string { return w.path }

// Commit flushes and atomically moves the file into place.
func (w *Writer) Commit() error {
	if w.f == nil {
		return ErrClosed
	}
	w.csv.Flush()
	err := w.csv.Error()
	if err == nil {
		err = w.buf.Flush()
	}
	if err == nil {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f = nil
	if err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("finish output: %w", err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Abort discards everything written. It is safe to call after Commit.
func (w *Writer) Abort() {
	if w.f == nil {
		return
	}
	_ = w.f.Close()
	w.f = nil
	_ = os.Remove(w.tmp)
}

// FormatFloat renders v with an invariant decimal point and the shortest
// representation that parses back to the same float64.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
