// Package logger provides the zap-based structured logger used across the
// facet library. All subsystems receive a *zap.SugaredLogger through their
// Config structs; this package only centralizes construction so that every
// component logs with the same encoding and the service name attached.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a production-grade sugared logger tagged with the given service
// name. Output goes to stderr with ISO8601 timestamps, which keeps index build
// logs readable when interleaved with the host engine's own logging.
func New(service string) *zap.SugaredLogger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(config),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)

	return zap.New(core).Sugar().With("service", service)
}

// NewNop returns a logger that discards everything. Components default to it
// when no logger is injected, so library users are never forced to configure
// logging just to open an index.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
