// Package logging wires the ambient structured logger shared by the router
// and the webhook dispatcher, the way midaz's mlog package wraps a single
// logger implementation and attaches it to context.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type loggerContextKey struct{}

// New builds the process-wide logger. Production builds get JSON output;
// anything else gets the human-readable development encoder.
func New(env string) (*zap.SugaredLogger, error) {
	var (
		base *zap.Logger
		err  error
	)

	if env == "production" {
		base, err = zap.NewProduction()
	} else {
		base, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}

	return base.Sugar(), nil
}

// WithContext attaches the logger to ctx so downstream handlers can recover
// a request-scoped logger without threading it through every call.
func WithContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext recovers the logger attached by WithContext, falling back to
// a no-op logger so callers never need a nil check.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(loggerContextKey{}).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return zap.NewNop().Sugar()
}
