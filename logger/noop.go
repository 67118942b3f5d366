package logger

import "time"

// NewNoop returns a Logger that discards everything. It is the default
// for clients constructed without an explicit logger.
func NewNoop() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug() LogEvent                      { return noopEvent{} }
func (noopLogger) Info() LogEvent                       { return noopEvent{} }
func (noopLogger) Warn() LogEvent                       { return noopEvent{} }
func (noopLogger) Error() LogEvent                      { return noopEvent{} }
func (n noopLogger) WithFields(_ map[string]any) Logger { return n }

type noopEvent struct{}

func (noopEvent) Msg(_ string)                             {}
func (noopEvent) Msgf(_ string, _ ...any)                  {}
func (e noopEvent) Err(_ error) LogEvent                   { return e }
func (e noopEvent) Str(_, _ string) LogEvent               { return e }
func (e noopEvent) Int(_ string, _ int) LogEvent           { return e }
func (e noopEvent) Int64(_ string, _ int64) LogEvent       { return e }
func (e noopEvent) Dur(_ string, _ time.Duration) LogEvent { return e }
func (e noopEvent) Interface(_ string, _ any) LogEvent     { return e }
func (e noopEvent) Bytes(_ string, _ []byte) LogEvent      { return e }
