package audit

import "context"

// Logger is the append-only audit sink. Implementations never update or delete entries.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
}

// LoggerFunc adapts a function to Logger
type LoggerFunc func(ctx context.Context, entry *Entry) error

// Log calls f
func (f LoggerFunc) Log(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}
