// Package logging wires the process-wide slog sinks: a colorized console
// handler and one append-only JSON log file per process start. All bridge
// timestamps, including Ollama created_at fields, use a single fixed
// timezone regardless of the host configuration.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // the fixed timezone must resolve inside a standalone binary

	"github.com/lmittmann/tint"
)

// location is the fixed timezone for every timestamp the bridge emits.
var location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// Now returns the current time in the bridge timezone.
func Now() time.Time {
	return time.Now().In(location)
}

// NowISO renders Now as an RFC 3339 timestamp with sub-second precision,
// the format used for wire-visible created_at fields.
func NowISO() string {
	return Now().Format("2006-01-02T15:04:05.000000-07:00")
}

// Setup creates the per-start log file under logDir and installs the
// default slog logger fanning out to stderr (human-readable) and the file
// (JSON lines). The returned file is closed by the caller at shutdown.
func Setup(logDir string, verbose bool) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := fmt.Sprintf("bridge-%s.log", Now().Format("20060102-150405"))
	path := filepath.Join(logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	console := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: fixedZoneTime,
	})

	slog.SetDefault(slog.New(fanout{handlers: []slog.Handler{console, fileHandler}}))
	slog.Info("log file opened", "path", path)
	return file, nil
}

func fixedZoneTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.TimeValue(t.In(location))
		}
	}
	return a
}

// fanout dispatches every record to all child handlers. Each handler
// serializes its own writes, so concurrent request handlers may log freely;
// ordering across requests is not guaranteed.
type fanout struct {
	handlers []slog.Handler
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return fanout{handlers: next}
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return fanout{handlers: next}
}
