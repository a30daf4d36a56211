// Package log wraps logrus behind a small Logger interface so protocol code
// never depends on the logging backend directly.
package log

import (
	"sync"
)

type Logger interface {
	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	mu     sync.Mutex
	logger Logger
)

// GetLogger returns the process logger, initializing it with defaults on
// first use so packages can log before Init runs (tests in particular).
func GetLogger() Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		if err := initByConfig(DefaultConfig()); err != nil {
			panic(err)
		}
	}
	return logger
}

// Init configures the process logger from the loaded configuration.
func Init(cfg *Config) error {
	mu.Lock()
	defer mu.Unlock()
	return initByConfig(cfg)
}
