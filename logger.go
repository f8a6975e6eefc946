package ftsearch

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with domain-specific helper methods, giving
// consistent field names across the pipeline, WAL, and search paths.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler defaults
// to a text handler on stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that emits JSON records at the given level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that emits human-readable text at the given level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

// WithIndexDir adds an index_dir field.
func (l *Logger) WithIndexDir(dir string) *Logger {
	return &Logger{Logger: l.Logger.With("index_dir", dir)}
}

// WithSegment adds a segment field.
func (l *Logger) WithSegment(name string) *Logger {
	return &Logger{Logger: l.Logger.With("segment", name)}
}

// LogSegmentWrite logs a segment write.
func (l *Logger) LogSegmentWrite(ctx context.Context, name string, numDocs int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "segment write failed", "segment", name, "error", err)
		return
	}
	l.InfoContext(ctx, "segment written", "segment", name, "docs", numDocs)
}

// LogFlush logs a real-time-index flush.
func (l *Logger) LogFlush(ctx context.Context, docsFlushed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed", "error", err)
		return
	}
	l.InfoContext(ctx, "flush completed", "docs_flushed", docsFlushed)
}

// LogWALReplay logs replaying the write-ahead log on startup.
func (l *Logger) LogWALReplay(ctx context.Context, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "wal replay failed", "error", err)
		return
	}
	l.InfoContext(ctx, "wal replay completed", "entries_replayed", entriesReplayed)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, query string, topK, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "query", query, "k", topK, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "query", query, "k", topK, "results", resultsFound)
}

// LogIndexBatch logs a pipeline batch being handed to the indexer stage.
func (l *Logger) LogIndexBatch(ctx context.Context, batchSize int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "batch index failed", "batch_size", batchSize, "error", err)
		return
	}
	l.DebugContext(ctx, "batch indexed", "batch_size", batchSize)
}

// LogCorruptSegment logs a segment that failed to open or read during search
// and was skipped rather than failing the whole query.
func (l *Logger) LogCorruptSegment(ctx context.Context, segment string, err error) {
	l.WarnContext(ctx, "skipping corrupt segment", "segment", segment, "error", err)
}
