package lumen

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Log returns the package-level structured logger, constructing it on first
// use with caller reporting and RFC3339 timestamps. Reserved for load
// failures, shader compile fallbacks, eviction cycles, and context-loss
// recovery — never called on the per-frame/per-quad hot path.
func Log() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      "2006-01-02T15:04:05Z07:00",
			Prefix:          "lumen",
		})
	})
	return logger
}

// SetLogOutput lets host applications redirect lumen's log output, e.g. to a
// file or to their own structured logging pipeline.
func SetLogOutput(w io.Writer, opts log.Options) {
	logger = log.NewWithOptions(w, opts)
}
