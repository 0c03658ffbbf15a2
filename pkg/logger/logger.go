// Package logger builds the process slog.Logger and the attribute helpers the
// dispatch engine logs through.
//
// Two formats are supported. text renders through charmbracelet/log for
// terminals. json writes one Entry per line with the owner, route, message
// type and component hoisted out of the free-form fields, so registration
// traffic can be filtered with jq or grep without parsing nested maps.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	charmLog "github.com/charmbracelet/log"

	"dxmsg/pkg/config"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	envFormat    = "DXMSG_LOG_FORMAT"
	envLevel     = "DXMSG_LOG_LEVEL"
	envAddSource = "DXMSG_LOG_ADD_SOURCE"
)

// settings is the logging configuration after environment overrides.
type settings struct {
	format    string
	level     slog.Level
	addSource bool
}

// New builds the process logger on stderr.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	s, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	if s.format == FormatJSON {
		return slog.New(&jsonHandler{
			level:     s.level,
			addSource: s.addSource,
			w:         w,
			mu:        &sync.Mutex{},
		}), nil
	}

	return slog.New(charmLog.NewWithOptions(w, charmLog.Options{
		Level:           charmLevel(s.level),
		ReportTimestamp: true,
		ReportCaller:    s.addSource,
		Formatter:       charmLog.TextFormatter,
	})), nil
}

// Discard returns a logger that drops every record. Full-screen views use it
// so log lines never tear the terminal.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func resolve(cfg config.LoggingConfig) (settings, error) {
	format := pick(os.Getenv(envFormat), cfg.Format, FormatText)
	if format != FormatText && format != FormatJSON {
		return settings{}, fmt.Errorf("unsupported log format %q", format)
	}

	levelName := pick(os.Getenv(envLevel), cfg.Level, "info")
	level, ok := levels[levelName]
	if !ok {
		return settings{}, fmt.Errorf("unsupported log level %q", levelName)
	}

	addSource := cfg.AddSource
	if env := strings.TrimSpace(os.Getenv(envAddSource)); env != "" {
		addSource = truthy(env)
	}

	return settings{format: format, level: level, addSource: addSource}, nil
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// pick returns the first non-blank candidate, lowercased.
func pick(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			return c
		}
	}
	return ""
}

func truthy(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}
