// Package log implements simple logging functionality with a focus on debug level logging. By default, logging is
// disabled and the underlying logger is a no-op implementation. Use SetLogger to enable debug logging.
package log

var logger Interface = noopLogger{}

// Interface is satisfied by most structured and leveled loggers, e.g. *zap.SugaredLogger.
type Interface interface {
	// Debugf v using a format string.
	Debugf(format string, v ...interface{})
}

// Func is an adapter to allow the use of ordinary printf-style functions as loggers.
type Func func(format string, v ...interface{})

// Debugf calls f(format, v...).
func (f Func) Debugf(format string, v ...interface{}) {
	f(format, v...)
}

// SetLogger sets the logger used by the localvault packages and enables debug level logging.
// Passing nil disables logging again.
func SetLogger(l Interface) {
	if l == nil {
		logger = noopLogger{}
		return
	}

	logger = l
}

// Debugf writes to the log using the configured logger.
func Debugf(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

// DebugEnabled returns true if a logger has been supplied via SetLogger.
func DebugEnabled() bool {
	_, ok := logger.(noopLogger)
	return !ok
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, v ...interface{}) {
	// do nothing
}
