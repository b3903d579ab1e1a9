package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID tags ctx with the id of the inbound HTTP request. The NATS
// adapter forwards it as a message header so delivery logs can be joined
// with the webhook that caused them.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestAttr is RequestID as a log attribute.
func RequestAttr(ctx context.Context) slog.Attr {
	return slog.String("request_id", RequestID(ctx))
}
