/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	// DEBUG level for detailed debug information.
	DEBUG LogLevel = iota
	// INFO level for general informational messages.
	INFO
	// WARN level for warning messages.
	WARN
	// ERROR level for error messages.
	ERROR
)

var LogLevels = map[string]LogLevel{
	"debug":   DEBUG,
	"info":    INFO,
	"warn":    WARN,
	"warning": WARN,
	"error":   ERROR,
}

var zerologLevels = map[LogLevel]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// logMutex guards swapping the logger; zerolog itself is safe for concurrent writes
var logMutex sync.RWMutex

var logger = newLogger(os.Stderr, WARN)

func newLogger(w io.Writer, level LogLevel) zerolog.Logger {
	if f, ok := w.(*os.File); ok {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.StampMilli}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerologLevels[level])
}

// SetOutput redirects log output. Files get the colored console format,
// any other writer receives JSON lines.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logger = newLogger(w, levelOf(logger.GetLevel()))
}

func SetLevel(level LogLevel) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logger = logger.Level(zerologLevels[level])
}

func GetLevel() LogLevel {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return levelOf(logger.GetLevel())
}

func levelOf(l zerolog.Level) LogLevel {
	for k, v := range zerologLevels {
		if v == l {
			return k
		}
	}
	return WARN
}

func logMessage(level LogLevel, message string) {
	logMutex.RLock()
	l := logger
	logMutex.RUnlock()
	l.WithLevel(zerologLevels[level]).Msg(message)
}

func Debug(v ...interface{}) {
	logMessage(DEBUG, fmt.Sprint(v...))
}

func Debugf(format string, v ...interface{}) {
	logMessage(DEBUG, fmt.Sprintf(format, v...))
}

func Info(v ...interface{}) {
	logMessage(INFO, fmt.Sprint(v...))
}

func Infof(format string, v ...interface{}) {
	logMessage(INFO, fmt.Sprintf(format, v...))
}

func Warn(v ...interface{}) {
	logMessage(WARN, fmt.Sprint(v...))
}

func Warnf(format string, v ...interface{}) {
	logMessage(WARN, fmt.Sprintf(format, v...))
}

func Error(v ...interface{}) {
	logMessage(ERROR, fmt.Sprint(v...))
}

func Errorf(format string, v ...interface{}) {
	logMessage(ERROR, fmt.Sprintf(format, v...))
}
