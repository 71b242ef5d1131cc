package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	LevelEnv       = "LOGGING_LEVEL"
	ServiceNameEnv = "SERVICE_NAME"
)

func New(level, service string, output io.Writer) (*logrus.Entry, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(output)

	if level == "" {
		level = "info"
	}

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid logging level %v: %w", level, err)
	}
	logger.SetLevel(parsed)

	entry := logrus.NewEntry(logger)
	if service != "" {
		entry = entry.WithField("service", service)
	}
	return entry, nil
}

// FromEnv falls back to info level when LOGGING_LEVEL is unusable and says so.
func FromEnv(defaultService string) *logrus.Entry {
	service := os.Getenv(ServiceNameEnv)
	if service == "" {
		service = defaultService
	}

	entry, err := New(os.Getenv(LevelEnv), service, os.Stdout)
	if err != nil {
		entry, _ = New("info", service, os.Stdout)
		entry.WithError(err).Warn("falling back to info level")
	}
	return entry
}
