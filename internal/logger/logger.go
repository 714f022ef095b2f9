package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Dir    string
	Level  string // DEBUG, INFO, WARNING, ERROR or CRITICAL
	Format string // "json" or "text"
	// Console, when set, receives a human readable copy of every record.
	Console io.Writer
	// Now is used to pick the hourly file; defaults to time.Now.
	Now func() time.Time
}

// Logger wraps zerolog.Logger and owns the hourly log file.
type Logger struct {
	zerolog.Logger
	file *os.File
	path string
}

// New opens (appending) the log file for the current UTC hour in opts.Dir.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(opts.Dir, FileName(now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // G304: directory comes from configuration
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	var output io.Writer = f
	if opts.Format == "text" {
		output = zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339}
	}
	if opts.Console != nil {
		output = zerolog.MultiLevelWriter(output, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
	}

	zl := zerolog.New(output).Level(level).With().Timestamp().Logger()

	return &Logger{Logger: zl, file: f, path: path}, nil
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string { return l.path }

// Close closes the underlying log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// FileName returns the log file name for the UTC hour containing t.
func FileName(t time.Time) string {
	return t.UTC().Format("2006-01-02-15") + ".log"
}

// ParseLevel maps the CLI level names onto zerolog levels.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO", "":
		return zerolog.InfoLevel, nil
	case "WARNING":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	case "CRITICAL":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}
