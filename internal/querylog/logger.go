// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

// Package querylog implements the structured per-query logger from
// spec.md §4.6/§6: one record per completed query, fields in a fixed,
// deterministic, whitespace-free order, writes non-blocking to the handler.
//
// It wraps github.com/sirupsen/logrus (a pack dependency — the teacher never
// imports a logging library, relying on the standard library's *log.Logger
// instead; logrus is used here for its leveled logging and because every
// ambient message elsewhere in the binary — startup, shutdown, TLS errors —
// goes through the same *logrus.Logger instance as the per-query records).
package querylog

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Mode names the server's operating mode for the QueryRecord's mode field.
type Mode string

const (
	Preloaded Mode = "preloaded"
	Reread    Mode = "reread"
)

// Record is one completed query, matching spec.md §3's QueryRecord and the
// field list in spec.md §6.
type Record struct {
	Peer       string
	Mode       Mode
	Algorithm  string
	QueryLen   int
	Matched    bool
	ElapsedNS  int64
	QueueDepth int64
	ErrKind    string // empty when the query succeeded
}

// Logger emits one Record per completed query plus ambient (startup,
// shutdown, error) messages, all through the same underlying writer.
type Logger struct {
	l *logrus.Logger
}

// New builds a Logger writing to out. The background delivery strategy
// (bounded channel + writer goroutine, falling back to a synchronous write
// when the channel is full so no record is ever lost) is provided by
// AsyncWriter; callers that don't need it can pass out directly for a
// synchronous logger instead.
func New(out io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&fieldOrderFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{l: l}
}

// Query logs one completed QueryRecord.
func (lg *Logger) Query(r Record) {
	fields := logrus.Fields{
		"peer":        r.Peer,
		"mode":        string(r.Mode),
		"algorithm":   r.Algorithm,
		"query_len":   r.QueryLen,
		"matched":     r.Matched,
		"elapsed_ns":  r.ElapsedNS,
		"queue_depth": r.QueueDepth,
	}
	if r.ErrKind != "" {
		fields["err_kind"] = r.ErrKind
	}
	lg.l.WithFields(fields).Info("query")
}

// Infof logs an ambient informational message (startup, shutdown progress).
func (lg *Logger) Infof(format string, args ...interface{}) { lg.l.Infof(format, args...) }

// Errorf logs an ambient error message (TLS handshake failure, bind error).
func (lg *Logger) Errorf(format string, args ...interface{}) { lg.l.Errorf(format, args...) }

// Fatalf logs an ambient fatal message; callers are expected to os.Exit
// afterward with the appropriate exit code from spec.md §6.
func (lg *Logger) Fatalf(format string, args ...interface{}) { lg.l.Errorf(format, args...) }

// fieldOrderFormatter renders exactly the field order spec.md §6 specifies:
// ts, peer, mode, algorithm, query_len, matched, elapsed_ns, queue_depth,
// err_kind?, each as key=value with no embedded whitespace, space-separated.
// logrus's built-in TextFormatter sorts fields alphabetically, which is
// deterministic but not the order spec.md names; hence the custom formatter.
type fieldOrderFormatter struct{}

var recordKeyOrder = []string{
	"peer", "mode", "algorithm", "query_len", "matched", "elapsed_ns", "queue_depth", "err_kind",
}

func (f *fieldOrderFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "ts=%s", e.Time.Format(time.RFC3339Nano))

	seen := make(map[string]bool, len(recordKeyOrder))
	isQueryRecord := false
	if _, ok := e.Data["peer"]; ok {
		isQueryRecord = true
	}
	if isQueryRecord {
		for _, k := range recordKeyOrder {
			if v, ok := e.Data[k]; ok {
				fmt.Fprintf(&b, " %s=%s", k, formatValue(v))
				seen[k] = true
			}
		}
	} else {
		// ambient (non-query) log line: level + message, then any extra
		// fields in a stable (sorted) order.
		fmt.Fprintf(&b, " level=%s msg=%s", e.Level.String(), quoteIfNeeded(e.Message))
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, formatValue(e.Data[k]))
		}
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// formatValue renders a field value; a value containing whitespace is
// Go-quoted with its spaces escaped as \x20, so the field stays
// whitespace-free and strconv.Unquote recovers the original.
func formatValue(v interface{}) string {
	s := fmt.Sprint(v)
	return strings.ReplaceAll(quoteIfNeeded(s), " ", `\x20`)
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\n") {
		return fmt.Sprintf("%q", s)
	}
	if s == "" {
		return `""`
	}
	return s
}

// AsyncWriter is a bounded-channel-backed writer with a single background
// flusher goroutine, matching spec.md §4.6: "buffered in a bounded channel
// with a background writer task, or flushed synchronously if the channel is
// at capacity (preserving ordering and never losing records)".
type AsyncWriter struct {
	out     io.Writer
	ch      chan []byte
	done    chan struct{}
	mu      sync.Mutex // serializes writes to out
	started sync.Once
}

// NewAsyncWriter wraps out with a channel of the given capacity.
func NewAsyncWriter(out io.Writer, capacity int) *AsyncWriter {
	if capacity <= 0 {
		capacity = 1
	}
	w := &AsyncWriter{
		out:  out,
		ch:   make(chan []byte, capacity),
		done: make(chan struct{}),
	}
	w.started.Do(func() { go w.run() })
	return w
}

func (w *AsyncWriter) run() {
	for p := range w.ch {
		w.mu.Lock()
		w.out.Write(p)
		w.mu.Unlock()
	}
	close(w.done)
}

// Write implements io.Writer. If the channel has room, the write is queued
// and returns immediately; if it is full, Write waits until the flusher has
// taken a queued record off the channel, so records keep their order and
// none is dropped.
func (w *AsyncWriter) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	w.ch <- cp
	return len(p), nil
}

// Close stops accepting new writes and waits for the background flusher to
// drain the channel.
func (w *AsyncWriter) Close() error {
	close(w.ch)
	<-w.done
	return nil
}
