// Package logger builds the structured logger shared by every service
// component.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger tagged with the service name. The level comes
// from LOG_LEVEL and defaults to info.
func New(service string) *logrus.Entry {
	return NewWithOutput(service, os.Getenv("LOG_LEVEL"), os.Stdout)
}

// NewWithOutput is New with an explicit level and writer.
func NewWithOutput(service, level string, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger.WithField("service", service)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Entry {
	return NewWithOutput("test", "panic", io.Discard)
}
