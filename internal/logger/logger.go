// Package logger configures zerolog with a size-rotated file sink.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Rotator implements io.Writer and handles log file rotation based on size.
type Rotator struct {
	Filename   string
	MaxSize    int64 // Bytes
	MaxBackups int
	file       *os.File
	size       int64
	mu         sync.Mutex
}

// Options configures Setup.
type Options struct {
	Level      string // DEBUG, INFO, WARN or ERROR
	Filename   string // empty disables the file sink
	MaxSizeMB  int64
	MaxBackups int
	Console    bool // human-readable stdout instead of JSON
}

// Setup points the global zerolog logger at stdout and, when a file is
// configured, a rotating log file. It returns the rotator, or nil when
// logging to stdout only.
func Setup(opts Options) *Rotator {
	zerolog.SetGlobalLevel(parseLevel(opts.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var stdout io.Writer = os.Stdout
	if opts.Console {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	}

	var rotator *Rotator
	out := stdout
	if opts.Filename != "" {
		rotator = &Rotator{
			Filename:   opts.Filename,
			MaxSize:    opts.MaxSizeMB * 1024 * 1024,
			MaxBackups: opts.MaxBackups,
		}
		if err := rotator.openExistingOrNew(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, using stdout only: %v\n", err)
			rotator = nil
		} else {
			// The file always gets JSON lines.
			out = io.MultiWriter(stdout, rotator)
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
	return rotator
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

func (r *Rotator) openExistingOrNew() error {
	info, err := os.Stat(r.Filename)
	if os.IsNotExist(err) {
		return r.openNew()
	}
	if err != nil {
		return err
	}

	// File exists, open it in append mode
	f, err := os.OpenFile(r.Filename, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = info.Size()
	return nil
}

func (r *Rotator) openNew() error {
	f, err := os.OpenFile(r.Filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = 0
	return nil
}

// Write satisfies the io.Writer interface. It checks size and rotates if needed.
func (r *Rotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	writeLen := int64(len(p))

	if r.file == nil {
		if err = r.openExistingOrNew(); err != nil {
			return 0, err
		}
	}

	if r.size+writeLen > r.MaxSize {
		if err := r.rotate(); err != nil {
			// Keep writing to the old file rather than drop lines.
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
	}

	n, err = r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate closes the current file, renames backups, and opens a new file.
func (r *Rotator) rotate() error {
	if r.file != nil {
		r.file.Close()
	}

	// Rename old backups
	// Example: log.2 -> log.3, log.1 -> log.2, log -> log.1
	for i := r.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.Filename, i)
		if _, err := os.Stat(oldPath); os.IsNotExist(err) {
			continue
		}
		_ = os.Rename(oldPath, fmt.Sprintf("%s.%d", r.Filename, i+1))
	}

	// Rename current log to .1
	if _, err := os.Stat(r.Filename); err == nil {
		_ = os.Rename(r.Filename, fmt.Sprintf("%s.1", r.Filename))
	}

	return r.openNew()
}

// Close closes the current log file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
