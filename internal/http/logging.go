package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger starts from the request logger installed by RequestLogger and
// tags it with the handler, the operation and the event ID of the path, if any.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	logger = logger.With(slog.String("handler", handlerName))
	if operation != "" {
		logger = logger.With(slog.String("operation", operation))
	}
	if eventID, ok := EventIDFromContext(ctx); ok {
		logger = logger.With(slog.String("event_id", eventID))
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}
