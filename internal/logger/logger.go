// Package logger builds the application's logrus logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger for env. Production logs JSON at info level,
// everything else logs text at debug level. LOG_LEVEL overrides the level.
func New(env string) *logrus.Logger {
	return NewWithOutput(env, os.Stdout)
}

// NewWithOutput is New writing to out
func NewWithOutput(env string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if level, err := logrus.ParseLevel(raw); err == nil {
			log.SetLevel(level)
		}
	}
	return log
}
