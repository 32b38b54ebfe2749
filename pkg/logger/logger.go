// Package logger provides the process-wide structured logger. It keeps
// the original package-level call-site API (Init/Debug/Info/Warn/Error)
// so existing call sites need no churn, but the implementation is now
// logrus, and With(component) returns a component-scoped logger carrying
// a "component" field for every subsystem (rope, syntax, syncmgr, ...)
// that wants its own namespace in the log stream.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var root = logrus.New()

func init() {
	root.SetOutput(os.Stderr)
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	root.SetLevel(logrus.InfoLevel)
}

// Init configures the root logger's level from LOG_LEVEL (debug, info,
// warn, error), defaulting to info.
func Init() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		root.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		root.SetLevel(logrus.WarnLevel)
	case "error":
		root.SetLevel(logrus.ErrorLevel)
	default:
		root.SetLevel(logrus.InfoLevel)
	}
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		root.SetFormatter(&logrus.JSONFormatter{})
	}
}

// Debug logs at debug level against the root logger.
func Debug(format string, v ...interface{}) { root.Debugf(format, v...) }

// Info logs at info level against the root logger.
func Info(format string, v ...interface{}) { root.Infof(format, v...) }

// Warn logs at warn level against the root logger.
func Warn(format string, v ...interface{}) { root.Warnf(format, v...) }

// Error logs at error level against the root logger.
func Error(format string, v ...interface{}) { root.Errorf(format, v...) }

// Component is a logger scoped to a single subsystem, carrying a
// "component" field on every entry it emits.
type Component struct {
	entry *logrus.Entry
}

// With returns a Component-scoped logger for name (e.g. "syntax",
// "syncmgr", "rope").
func With(name string) Component {
	return Component{entry: root.WithField("component", name)}
}

func (c Component) Debug(format string, v ...interface{}) { c.entry.Debugf(format, v...) }
func (c Component) Info(format string, v ...interface{})  { c.entry.Infof(format, v...) }
func (c Component) Warn(format string, v ...interface{})  { c.entry.Warnf(format, v...) }
func (c Component) Error(format string, v ...interface{}) { c.entry.Errorf(format, v...) }
