package bot

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type logEntryKey struct{}

func WithLogEntry(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, logEntryKey{}, entry)
}

// LogEntry returns the request scoped entry, or a bare one.
func LogEntry(ctx context.Context) *log.Entry {
	if entry, ok := ctx.Value(logEntryKey{}).(*log.Entry); ok && entry != nil {
		return entry
	}
	return log.NewEntry(log.StandardLogger())
}
