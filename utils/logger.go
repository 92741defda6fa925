package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = logrus.New()
	ErrorLogger = logrus.New()
)

func InitLogger() {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	// info ke stdout, error ke stderr
	InfoLogger.SetOutput(os.Stdout)
	InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ErrorLogger.SetOutput(os.Stderr)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	InfoLogger.SetLevel(parseLevel(os.Getenv("LOG_LEVEL"), logrus.InfoLevel))
	// ErrorLogger.Printf logs at info level, so keep it open
	ErrorLogger.SetLevel(logrus.InfoLevel)
}

func parseLevel(raw string, fallback logrus.Level) logrus.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return fallback
	}
	return level
}
