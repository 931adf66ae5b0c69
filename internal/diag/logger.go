package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level: log level names accepted by config.
type Level = zerolog.Level

// ParseLevel maps debug|info|warn|error; anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogOptions configures NewLogger.
type LogOptions struct {
	Level string
	// Dir of the rotating JSON log; empty means "logs".
	Dir      string
	MaxBytes int64
	// Console, when set, mirrors events in human-readable form.
	Console io.Writer
}

// Logger: structured JSON events (one per line) with a fixed vocabulary:
// corr_id, comp, stage (start|finish|error|skip), code, dur_ms, count,
// file_id, msg and optional kv.
type Logger struct {
	zl   zerolog.Logger
	sink *RotatingFile
}

// NewLogger logs to a size-rotated file under opts.Dir (10 MiB by default).
func NewLogger(corrID string, opts LogOptions) *Logger {
	dir := opts.Dir
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	sink := NewRotatingFile(dir, opts.MaxBytes)
	var w io.Writer = sink
	if opts.Console != nil {
		w = zerolog.MultiLevelWriter(sink, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
	}
	return &Logger{zl: newZerolog(w, corrID, opts.Level), sink: sink}
}

// NewLoggerWriter logs to w only (tests, stderr fallback). Writes to w are
// serialized.
func NewLoggerWriter(w io.Writer, corrID, level string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{zl: newZerolog(zerolog.SyncWriter(w), corrID, level)}
}

func newZerolog(w io.Writer, corrID, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Str("corr_id", corrID).Logger()
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

func (l *Logger) event(lv Level, comp, stage string) *zerolog.Event {
	return l.zl.WithLevel(lv).Str("comp", comp).Str("stage", stage)
}

func withFile(e *zerolog.Event, fileID string) *zerolog.Event {
	if fileID != "" {
		e = e.Str("file_id", fileID)
	}
	return e
}

func withKV(e *zerolog.Event, kv map[string]string) *zerolog.Event {
	if len(kv) == 0 {
		return e
	}
	d := zerolog.Dict()
	for k, v := range kv {
		d = d.Str(k, v)
	}
	return e.Dict("kv", d)
}

func durMS(since *time.Time) int64 {
	if since == nil {
		return 0
	}
	return time.Since(*since).Milliseconds()
}

// Start logs a start event and returns a timer for Finish.
func (l *Logger) Start(comp, msg string) *Timer {
	l.event(zerolog.InfoLevel, comp, "start").Msg(msg)
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith is Start scoped to one document.
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	withFile(l.event(zerolog.InfoLevel, comp, "start"), fileID).Msg(msg)
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Error logs an error event.
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", nil)
}

// ErrorWith is Error scoped to one document.
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, nil)
}

// ErrorWithKV is ErrorWith with extra key/values.
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	e := l.event(zerolog.ErrorLevel, comp, "error").Str("code", code)
	if d := durMS(durSince); d > 0 {
		e = e.Int64("dur_ms", d)
	}
	withKV(withFile(e, fileID), kv).Msg(msg)
}

// Skip logs a document or record dropped from the run (warn level).
func (l *Logger) Skip(comp, code, msg, fileID string) {
	withFile(l.event(zerolog.WarnLevel, comp, "skip").Str("code", code), fileID).Msg(msg)
}

// InfoFinish logs a finish event for an externally tracked start.
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.event(zerolog.InfoLevel, comp, "finish").
		Int64("dur_ms", time.Since(start).Milliseconds()).
		Int64("count", count).
		Msg(msg)
}

// DebugStart logs a start event at debug level only.
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	withKV(withFile(l.event(zerolog.DebugLevel, comp, "start"), fileID), kv).Msg(msg)
}

// Timer pairs a start event with its finish.
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish logs the finish event with the elapsed time and an optional count.
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	e := t.l.event(zerolog.InfoLevel, t.comp, "finish").Int64("dur_ms", time.Since(t.t0).Milliseconds())
	if count > 0 {
		e = e.Int64("count", count)
	}
	withFile(e, t.fileID).Msg(msg)
}

// Since returns the timer's start time.
func (t *Timer) Since() time.Time {
	if t == nil {
		return time.Now()
	}
	return t.t0
}
