// Package export writes verified records as JSON Lines and renders run
// summaries for people.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dgallion1/citecheck/internal/record"
)

// Writer writes one JSON object per line.
type Writer struct {
	buf    *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	n      int
}

// NewWriter writes to w. Close flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// OpenFile opens path for appending, creating it and its directory when
// missing, so repeated runs accumulate into one dataset.
func OpenFile(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write appends records in order.
func (w *Writer) Write(records ...record.Verified) error {
	for _, r := range records {
		if err := w.enc.Encode(r); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		w.n++
	}
	return nil
}

// Count returns how many records have been written.
func (w *Writer) Count() int { return w.n }

func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// Close flushes buffered records and closes the file opened by OpenFile.
// Closing twice is a no-op.
func (w *Writer) Close() error {
	err := w.buf.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}

// WriteJSONL writes records to w as JSON Lines.
func WriteJSONL(w io.Writer, records []record.Verified) error {
	jw := NewWriter(w)
	if err := jw.Write(records...); err != nil {
		return err
	}
	return jw.Flush()
}
