package httputil

import (
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// LeveledLogger adapts a charmbracelet logger to retryablehttp.LeveledLogger.
//
// The client logs every attempt; those lines are demoted to debug so a normal
// run only shows the preprocessor's own messages. Warnings and errors (retry
// exhaustion, body drain failures) keep their level.
type LeveledLogger struct {
	l *log.Logger
}

// NewLeveledLogger wraps l, tagging each line with the http prefix.
func NewLeveledLogger(l *log.Logger) *LeveledLogger {
	return &LeveledLogger{l: l.WithPrefix("http")}
}

func (a *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	a.l.Error(msg, keysAndValues...)
}

func (a *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	a.l.Warn(msg, keysAndValues...)
}

func (a *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	a.l.Debug(msg, keysAndValues...)
}

func (a *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	a.l.Debug(msg, keysAndValues...)
}

var _ retryablehttp.LeveledLogger = (*LeveledLogger)(nil)
