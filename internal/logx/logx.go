package logx

import (
	"context"

	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	serverKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithServer annotates the logger with the server id if present.
func WithServer(ctx context.Context, id schema.ServerID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if id != "" {
		if current, ok := ctx.Value(serverKey).(schema.ServerID); ok && current == id {
			return log
		}
		log = log.With("server", id)
	}
	return log
}

// WithAttempt annotates the logger with a connection attempt number.
func WithAttempt(log pslog.Logger, attempt uint64) pslog.Logger {
	if attempt > 0 {
		log = log.With("attempt", attempt)
	}
	return log
}

// ContextWithServer stores the server marker on the context for log de-duplication.
func ContextWithServer(ctx context.Context, id schema.ServerID) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, serverKey, id)
}

// ContextWithServerLogger attaches the logger and server marker to the context.
func ContextWithServerLogger(ctx context.Context, log pslog.Logger, id schema.ServerID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithServer(ctx, id)
}

// CopyContextFields copies the server marker from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if id, ok := src.Value(serverKey).(schema.ServerID); ok && id != "" {
		dst = ContextWithServer(dst, id)
	}
	return dst
}
