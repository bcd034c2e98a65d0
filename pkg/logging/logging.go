// Package logging builds the hclog loggers shared by every component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options controls logger construction.
type Options struct {
	Name   string
	Level  string
	JSON   bool
	Output io.Writer
}

// New returns a named logger writing to stderr unless Output is set.
func New(opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	name := opts.Name
	if name == "" {
		name = "ytdlx"
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: opts.JSON,
		Color:      hclog.AutoColor,
	})
}

// ParseLevel maps a config string to an hclog level, defaulting to Info.
func ParseLevel(s string) hclog.Level {
	level := hclog.LevelFromString(strings.TrimSpace(s))
	if level == hclog.NoLevel {
		return hclog.Info
	}
	return level
}

// OrNull returns l, or a null logger when l is nil.
func OrNull(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}

// Diag logs a diagnostic line: at Info when verbose is set, at Debug otherwise.
func Diag(l hclog.Logger, verbose bool, msg string, args ...any) {
	if l == nil {
		return
	}
	if verbose {
		l.Info(msg, args...)
		return
	}
	l.Debug(msg, args...)
}
