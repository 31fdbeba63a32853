package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the application logger writing to stdout
func NewLogger(level string) *logrus.Logger {
	return newLogger(os.Stdout, level)
}

// NewCLILogger creates a logger for one-shot commands. It writes to stderr so
// command output on stdout stays clean.
func NewCLILogger(level string) *logrus.Logger {
	return newLogger(os.Stderr, level)
}

// NewDiscardLogger returns a logger that drops everything (used by tests)
func NewDiscardLogger() *logrus.Logger {
	logger := newLogger(io.Discard, "panic")
	return logger
}

func newLogger(out io.Writer, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return logger
}
