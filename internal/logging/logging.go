package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the service logger. Unknown levels fall back to info.
func New(level, format string) *logrus.Logger {
	log := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	if strings.EqualFold(format, "json") {
		log.Formatter = &logrus.JSONFormatter{}
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.Level = parsed
	}
	return log
}
