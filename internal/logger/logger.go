package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lmittmann/tint"

	"stationagent/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled printf-style logging to the console and to
// per-level files in the log directory.
type Logger struct {
	slog   *slog.Logger
	logDir string
	files  *levelFiles
}

// New creates a Logger and ensures the log directory exists.
func New(cfg config.LogConfig) (*Logger, error) {
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	files, err := openLevelFiles(cfg.Directory)
	if err != nil {
		return nil, err
	}

	level := ParseLevel(cfg.Level)
	console := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})

	return &Logger{
		slog:   slog.New(&fanout{handlers: []slog.Handler{console, files.handler(level)}}),
		logDir: cfg.Directory,
		files:  files,
	}, nil
}

// NewWithWriter logs to w only. Useful for commands that do not own a log directory.
func NewWithWriter(w io.Writer, level slog.Level) *Logger {
	return &Logger{
		slog: slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: "15:04:05", NoColor: true})),
	}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger tagging every entry with the component name.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		slog:   l.slog.With("component", component),
		logDir: l.logDir,
		files:  l.files,
	}
}

// Slog exposes the underlying structured logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(slog.LevelDebug, format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(slog.LevelInfo, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log(slog.LevelWarn, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(slog.LevelError, format, v...)
}

func (l *Logger) log(level slog.Level, format string, v ...interface{}) {
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}
	l.slog.Log(ctx, level, fmt.Sprintf(format, v...))
}

// Directory returns the directory holding the level files, or "" for
// loggers without files.
func (l *Logger) Directory() string {
	return l.logDir
}

// CleanLogs truncates the named log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.files == nil {
		return fmt.Errorf("logger has no log files")
	}
	if err := l.files.truncate(fileName); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}
	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Close closes the level files.
func (l *Logger) Close() error {
	if l.files == nil {
		return nil
	}
	return l.files.close()
}

// levelFiles routes records to info.log, warning.log or error.log.
type levelFiles struct {
	mu    sync.Mutex
	files map[string]*os.File
}

func openLevelFiles(dir string) (*levelFiles, error) {
	lf := &levelFiles{files: make(map[string]*os.File, 3)}
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			lf.close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		lf.files[name] = f
	}
	return lf, nil
}

func (lf *levelFiles) handler(level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	return &levelRouter{
		info:    slog.NewTextHandler(&lockedWriter{lf: lf, name: InfoFile}, opts),
		warning: slog.NewTextHandler(&lockedWriter{lf: lf, name: WarningFile}, opts),
		error:   slog.NewTextHandler(&lockedWriter{lf: lf, name: ErrorFile}, opts),
	}
}

func (lf *levelFiles) write(name string, p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	f, ok := lf.files[name]
	if !ok {
		return 0, fmt.Errorf("log file %s is closed", name)
	}
	return f.Write(p)
}

func (lf *levelFiles) truncate(name string) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	f, ok := lf.files[name]
	if !ok {
		return fmt.Errorf("unknown log file %s", name)
	}
	return f.Truncate(0)
}

func (lf *levelFiles) close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	var firstErr error
	for name, f := range lf.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(lf.files, name)
	}
	return firstErr
}

type lockedWriter struct {
	lf   *levelFiles
	name string
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	return w.lf.write(w.name, p)
}
