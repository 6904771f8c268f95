package core

import (
	"context"

	"go.uber.org/zap"
)

// Detector is implemented by every vulnerability rule set. Detect must return no
// findings and no error when the fields it looks at are absent.
type Detector interface {
	Name() string
	Detect(ctx context.Context, sc *ScanContext) ([]Finding, error)
}

type loggerKey struct{}

// WithLogger attaches a logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger carried by ctx, or a no-op logger.
func LoggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}
