package config

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// for Log

func initLogrus() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		TimestampFormat: time.DateTime,
	})
	if Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

const (
	PathRawSpans = "/tmp/tracelink_raw_spans.log.json"
)

// Log4RawSpans mirrors every exported span to a JSON file in debug mode.
var Log4RawSpans = initLog4(PathRawSpans)

func initLog4(path string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	tmpLog, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(err)
	}
	logger.SetOutput(tmpLog)
	return logger
}

func init() {
	initLogrus()

	Log4RawSpans.SetLevel(logrus.DebugLevel)
}

// ApplyLogLevel re-applies the level after flag parsing flips Debug.
func ApplyLogLevel() {
	initLogrus()
}
