// Package logging provides the client's structured logger backed by zerolog.
//
// Logs go to a file inside the state directory rather than the terminal:
// the TUI owns the screen, so the log panel reads the file back via Tail.
package logging

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Options controls logger behaviour at initialisation time.
type Options struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Defaults to "info" when empty or unrecognised.
	Level string
	// Path is the log file to append to.
	Path string
}

// Logger owns the log file and hands out zerolog instances bound to it.
type Logger struct {
	zl   zerolog.Logger
	path string
	file *os.File
	mu   sync.Mutex
}

// New opens (or creates) the log file and builds the logger.
func New(opts Options) (*Logger, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("logging: log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	lvl := parseLevel(opts.Level)
	writer := zerolog.ConsoleWriter{Out: file, TimeFormat: "15:04:05", NoColor: true}
	zl := zerolog.New(writer).Level(lvl).With().Timestamp().Logger()

	return &Logger{zl: zl, path: opts.Path, file: file}, nil
}

var nopLogger = zerolog.Nop()

// Z returns the underlying zerolog logger.
func (l *Logger) Z() *zerolog.Logger {
	if l == nil {
		return &nopLogger
	}
	return &l.zl
}

// With returns a logger with a component field attached.
func (l *Logger) With(component string) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return l.zl.With().Str("component", component).Logger()
}

// Path returns the file backing this logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Tail returns up to maxLines of the most recent log lines for display in
// the TUI log panel.
func (l *Logger) Tail(maxLines int) []string {
	if l == nil || maxLines <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) == 0 {
		return nil
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
