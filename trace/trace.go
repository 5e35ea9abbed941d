// Package trace provides append-only, human-readable sinks for pipeline runs.
// Nothing written to a Sink is read back by the pipeline.
package trace

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	bannerRule  = "============================================================"
	sectionRule = "------------------------------------------------------------"

	previewBytes = 64
	stampLayout  = "20060102_150405"
)

// Sink receives trace events.
type Sink interface {
	Banner(title string)
	Section(title string)
	KV(key, value string)
	Line(s string)
	BytesPreview(label string, b []byte)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Banner(string)               {}
func (Nop) Section(string)              {}
func (Nop) KV(string, string)           {}
func (Nop) Line(string)                 {}
func (Nop) BytesPreview(string, []byte) {}

// RunStamp formats clock() as YYYYMMDD_HHMMSS. A nil clock uses time.Now.
func RunStamp(clock func() time.Time) string {
	if clock == nil {
		clock = time.Now
	}
	return clock().Format(stampLayout)
}

// Preview renders the first 64 bytes of b as hex, with "..." when truncated.
func Preview(b []byte) string {
	take := len(b)
	if take > previewBytes {
		take = previewBytes
	}
	s := hex.EncodeToString(b[:take])
	if len(b) > take {
		s += "..."
	}
	return fmt.Sprintf("len=%d hex64=%s", len(b), s)
}

// Writer formats events as plain text lines onto one or more writers. The
// first write error is kept and later writes are skipped.
type Writer struct {
	name string
	file string
	w    io.Writer
	err  error
}

// NewWriter returns a Writer named name. file is only reported in banners.
func NewWriter(name, file string, ws ...io.Writer) *Writer {
	var w io.Writer = io.Discard
	switch len(ws) {
	case 0:
	case 1:
		w = ws[0]
	default:
		w = io.MultiWriter(ws...)
	}
	return &Writer{name: name, file: file, w: w}
}

func (t *Writer) Banner(title string) {
	t.Line("")
	t.Line(bannerRule)
	t.KV("TRACE", t.name)
	t.KV("TITLE", title)
	if t.file != "" {
		t.KV("FILE", t.file)
	}
	t.Line(bannerRule)
	t.Line("")
}

func (t *Writer) Section(title string) {
	t.Line("")
	t.Line(sectionRule)
	t.Line(title)
	t.Line(sectionRule)
}

func (t *Writer) KV(key, value string) { t.Line(key + ": " + value) }

func (t *Writer) Line(s string) {
	if t.err != nil {
		return
	}
	_, t.err = io.WriteString(t.w, s+"\n")
}

func (t *Writer) BytesPreview(label string, b []byte) { t.KV(label, Preview(b)) }

// Err returns the first write error, if any.
func (t *Writer) Err() error { return t.err }

// File is a Writer backed by run_<stamp>_<name>.log under a directory.
type File struct {
	*Writer
	path string
	f    *os.File
}

// Filename is the log file name for a run stamp and trace name.
func Filename(stamp, name string) string {
	return "run_" + stamp + "_" + name + ".log"
}

// OpenFile creates dir if needed and opens a fresh trace file in it. Every
// line is also written to each tee writer.
func OpenFile(dir, stamp, name string, tee ...io.Writer) (*File, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("trace: empty trace name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("trace: create dir: %w", err)
	}
	path := filepath.Join(dir, Filename(stamp, name))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: create file: %w", err)
	}
	ws := append([]io.Writer{f}, tee...)
	return &File{Writer: NewWriter(name, path, ws...), path: path, f: f}, nil
}

func (t *File) Path() string { return t.path }

// Close closes the file and reports the first write or close error.
func (t *File) Close() error {
	cerr := t.f.Close()
	if err := t.Err(); err != nil {
		return err
	}
	return cerr
}

// Zap emits events as structured log entries.
type Zap struct {
	log *zap.Logger
}

// NewZap returns a sink that logs through l, tagging every entry with the
// trace name.
func NewZap(l *zap.Logger, name string) *Zap {
	if l == nil {
		l = zap.NewNop()
	}
	return &Zap{log: l.With(zap.String("trace", name))}
}

func (z *Zap) Banner(title string)  { z.log.Info("banner", zap.String("title", title)) }
func (z *Zap) Section(title string) { z.log.Info("section", zap.String("title", title)) }
func (z *Zap) KV(key, value string) {
	z.log.Info("kv", zap.String("key", key), zap.String("value", value))
}
func (z *Zap) Line(s string) { z.log.Info("line", zap.String("text", s)) }
func (z *Zap) BytesPreview(label string, b []byte) {
	z.log.Info("bytes",
		zap.String("label", label),
		zap.Int("len", len(b)),
		zap.String("preview", Preview(b)),
	)
}

// Tee fans every event out to each sink in order.
type Tee []Sink

func (t Tee) Banner(title string) {
	for _, s := range t {
		s.Banner(title)
	}
}

func (t Tee) Section(title string) {
	for _, s := range t {
		s.Section(title)
	}
}

func (t Tee) KV(key, value string) {
	for _, s := range t {
		s.KV(key, value)
	}
}

func (t Tee) Line(line string) {
	for _, s := range t {
		s.Line(line)
	}
}

func (t Tee) BytesPreview(label string, b []byte) {
	for _, s := range t {
		s.BytesPreview(label, b)
	}
}
