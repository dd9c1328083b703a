package jobline

import "log"

// Logger defines an interface that implementers can use to redirect the
// queue's diagnostic output into their own application's logging.
type Logger interface {
	Printf(format string, v ...interface{})
}

// stdLogger implements Logger by wrapping the standard log package. It is
// used when no Logger is configured via WithLogger.
type stdLogger struct{}

func (stdLogger) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}
