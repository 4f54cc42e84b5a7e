package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var levels = map[string]logrus.Level{
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
	"fatal": logrus.FatalLevel,
	"panic": logrus.PanicLevel,
}

// ParseLevel maps a configured level name to a logrus level
func ParseLevel(name string) (logrus.Level, error) {
	if name == "" {
		return logrus.InfoLevel, nil
	}
	level, ok := levels[strings.ToLower(name)]
	if !ok {
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %s", name)
	}
	return level, nil
}

// Setup configures the standard logrus logger
func Setup(levelName string) error {
	level, err := ParseLevel(levelName)
	if err != nil {
		return err
	}
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.0000",
	})
	logrus.SetLevel(level)
	return nil
}

// For returns a logger tagged with a component name
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
