package helpers

import (
	"os"

	"github.com/sirupsen/logrus"
)

// fieldsHook stamps fixed fields on every entry that does not set them.
type fieldsHook struct {
	fields logrus.Fields
}

func (h fieldsHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h fieldsHook) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}

// NewLogger returns a logger for one binary: text with full timestamps at
// debug level in development, JSON at info level elsewhere. Every entry
// carries app and env.
func NewLogger(appName, env string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if env == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	}
	logger.AddHook(fieldsHook{fields: logrus.Fields{"app": appName, "env": env}})
	return logger
}
