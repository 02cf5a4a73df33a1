package logger

import (
	"log/slog"
	"time"
)

// LogQuery logs database operations. The database hook calls it for failed
// and slow queries.
func LogQuery(query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", duration),
		slog.String("query", query),
	}
	if err != nil {
		slog.Error("Query failed", append(attrs, slog.Any("error", err))...)
		return
	}
	slog.Warn("Slow query", attrs...)
}
