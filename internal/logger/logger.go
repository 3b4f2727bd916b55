// Package logger builds the process logger from the logging config section:
// logrus with a text or JSON formatter, optionally writing to a rotated file.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/seenimoa/fnopart/internal/config"
)

// New returns a logger configured from cfg. Output goes to stderr unless
// cfg.File is set, in which case it is rotated by size and age.
func New(cfg config.LoggingConfig) (*logrus.Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	l.SetOutput(output(cfg))
	return l, nil
}

func output(cfg config.LoggingConfig) io.Writer {
	switch cfg.File {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}

// Discard returns a logger that drops everything, for tests and library use.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// WithComponent tags entries with the emitting component.
func WithComponent(l logrus.FieldLogger, component string) *logrus.Entry {
	return l.WithField("component", component)
}
