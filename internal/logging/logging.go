package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, charmlog.WarnLevel, false)
)

// Config controls the process-wide logger
type Config struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// Setup replaces the process-wide logger
func Setup(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	l := newLogger(out, ParseLevel(cfg.Level), cfg.JSON)

	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the process-wide logger
func L() *charmlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// ParseLevel maps a level name to a charm level, defaulting to info
func ParseLevel(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

func newLogger(out io.Writer, level charmlog.Level, json bool) *charmlog.Logger {
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
		Prefix:          "strata",
	})
	if json {
		l.SetFormatter(charmlog.JSONFormatter)
	} else {
		l.SetFormatter(charmlog.TextFormatter)
	}
	return l
}
