// Package logging builds the root structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// New returns a logger named name. LOG_LEVEL selects the level
// (trace|debug|info|warn|error, default info); LOG_FORMAT=json selects JSON
// output.
func New(name string) hclog.Logger {
	return NewWithOutput(name, os.Stderr)
}

// NewWithOutput is New writing to w.
func NewWithOutput(name string, w io.Writer) hclog.Logger {
	level := hclog.LevelFromString(os.Getenv("LOG_LEVEL"))
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     w,
		JSONFormat: strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
	})
}
