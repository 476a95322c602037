// Package logging builds the charmbracelet logger the asmlens commands
// report through, and scopes it to the pipeline's stages so every record
// carries the annotation context (target file, compiler, listing size).
//
// Environment:
//
//	ASMLENS_LOG_LEVEL  debug, info, warn, error (default info)
//	ASMLENS_LOG_FILE   append records to this file instead of stderr
package logging

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Logger owns the optional log file along with the logger itself.
type Logger struct {
	*log.Logger
	file *os.File
}

// New configures a logger from the environment. A bad ASMLENS_LOG_FILE
// falls back to stderr rather than failing the command.
func New() *Logger {
	l := &Logger{}

	out := os.Stderr
	if path := os.Getenv("ASMLENS_LOG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
			out = f
			l.file = f
		}
	}

	lg := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "asmlens",
	})
	if level, err := log.ParseLevel(os.Getenv("ASMLENS_LOG_LEVEL")); err == nil {
		lg.SetLevel(level)
	} else {
		lg.SetLevel(log.InfoLevel)
	}

	l.Logger = lg
	return l
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Annotation scopes the logger to one annotate round trip. An empty
// target means the translation unit's own source is being annotated.
func (l *Logger) Annotation(target string, inputBytes int) *log.Logger {
	if target == "" {
		target = "(translation unit)"
	}
	return l.With("target", target, "asm_bytes", inputBytes)
}

// Invocation scopes the logger to one compiler run.
func (l *Logger) Invocation(compiler, directory string) *log.Logger {
	return l.With("compiler", compiler, "dir", directory)
}
