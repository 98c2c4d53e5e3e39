package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

// InitLogger configures Logger for env ("production" logs to logs/app.log)
// at the given level (debug, info, warn, error).
func InitLogger(env, level string) {
	Logger.SetReportCaller(true)

	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		PrettyPrint:     false,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			filename := filepath.Base(f.File)
			return "", filename + ":" + strconv.Itoa(f.Line)
		},
	})

	Logger.SetLevel(ParseLevel(level))

	if env == "production" {
		_, currentFile, _, ok := runtime.Caller(0)
		if !ok {
			Logger.Out = os.Stdout
			Logger.Warn("Failed to get caller information, using stdout instead")
			return
		}
		projectRoot := filepath.Join(filepath.Dir(currentFile), "../..")
		var err error
		projectRoot, err = filepath.Abs(projectRoot)
		if err != nil {
			Logger.Out = os.Stdout
			Logger.WithError(err).Warn("Failed to resolve project root path, using stdout instead")
			return
		}

		logDir := filepath.Join(projectRoot, "logs")

		if err := os.MkdirAll(logDir, 0755); err != nil {
			Logger.Out = os.Stdout
			Logger.WithError(err).Warn("Failed to create logs directory, using stdout instead")
			return
		}

		logFilePath := filepath.Join(logDir, "app.log")

		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			Logger.Out = os.Stdout
			Logger.WithError(err).Warn("Failed to log to file, using stdout instead")
			return
		}
		Logger.Out = file
	} else {
		Logger.Out = os.Stdout
	}
}

func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
