package mapreduce

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger configured from LogLevel and LogFormat.
// Unknown levels fall back to info.
func NewLogger(conf *Configuration) *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if conf.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
