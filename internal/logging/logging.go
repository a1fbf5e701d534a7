// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"tierd/internal/common/fsutil"
)

// Options select the level, format and destination of the logger.
type Options struct {
	Level  string
	Format string // json or console
	// File, when set, receives a copy of every entry in JSON, rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New returns a logger writing to stderr and, optionally, a rotating file.
// The returned closer releases the file; it is a no-op without one.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	var console io.Writer = os.Stderr
	if opts.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		path, err := fsutil.ExpandHome(opts.File)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, err
		}
		if err := fsutil.EnsureParentDir(path); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("log dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, lj)
		closer = lj
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("app", "tierd").
		Logger()
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
