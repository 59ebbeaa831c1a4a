package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

// New builds a logrus logger writing to out. format is "json" or "text".
func New(out io.Writer, level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log
}

// Init replaces the process logger used by WithComponent.
func Init(level, format string) *logrus.Logger {
	base = New(os.Stdout, level, format)
	return base
}

// Get returns the process logger.
func Get() *logrus.Logger {
	return base
}

// WithComponent tags log lines with the emitting component.
func WithComponent(name string) *logrus.Entry {
	return base.WithField("component", name)
}
