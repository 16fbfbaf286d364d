package logger

import (
	"fmt"
	"sync"
)

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the process-wide logger, creating it on first use.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New()
	})
	return defaultLogger
}

func (l *Logger) activateSink(msg string) {
	if l.sink != nil {
		l.sink(msg)
	}
}

func (l *Logger) activateSinkFormatted(format string, v ...interface{}) {
	if l.sink != nil {
		l.sink(fmt.Sprintf(format, v...))
	}
}
