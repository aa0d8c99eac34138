// Package record implements the ndjson output sink (spec §6.3): one JSON
// object per line, optionally LZ4-wrapped, for both "block" and "function"
// record types.
package record

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/kilobyte-re/lexer/controlflow"
)

// Writer serializes block/function records as newline-delimited JSON.
type Writer struct {
	w    *bufio.Writer
	lz4w *lz4.Writer
	mu   chan struct{} // 1-buffered mutex: guards interleaved concurrent Write calls
}

// New returns a Writer over underlying, optionally wrapping it in an LZ4
// stream when lz4Enabled is set (spec General.lz4 config flag).
func New(underlying io.Writer, lz4Enabled bool) *Writer {
	w := &Writer{mu: make(chan struct{}, 1)}
	w.mu <- struct{}{}
	if lz4Enabled {
		zw := lz4.NewWriter(underlying)
		w.lz4w = zw
		w.w = bufio.NewWriter(zw)
	} else {
		w.w = bufio.NewWriter(underlying)
	}
	return w
}

func (w *Writer) writeLine(v any) error {
	<-w.mu
	defer func() { w.mu <- struct{}{} }()

	data, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.w.Write(data); err != nil {
		return errors.WithStack(err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// WriteBlock emits one "block" record.
func (w *Writer) WriteBlock(b controlflow.BlockJSON) error { return w.writeLine(b) }

// WriteFunction emits one "function" record.
func (w *Writer) WriteFunction(f controlflow.FunctionJSON) error { return w.writeLine(f) }

// Flush flushes buffered output, and the LZ4 frame if wrapping is enabled.
func (w *Writer) Flush() error {
	<-w.mu
	defer func() { w.mu <- struct{}{} }()
	if err := w.w.Flush(); err != nil {
		return errors.WithStack(err)
	}
	if w.lz4w != nil {
		if err := w.lz4w.Close(); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
