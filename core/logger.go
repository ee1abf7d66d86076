package core

// Logger is implemented by all logging backends.
// Error and Fatal accept extra args (wrapped errors, the acting user) that
// backends may forward to an error tracker.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
