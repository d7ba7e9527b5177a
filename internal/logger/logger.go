// Package logger builds the zap logger used across the service and carries
// a request-scoped child logger on the Echo context.
package logger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const contextKey = "logger"

// New returns a JSON production logger for env "prod" and a colourised
// development logger otherwise.
func New(env string) (*zap.Logger, error) {
	if env == "prod" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// Into stores l on the request context.
func Into(c echo.Context, l *zap.Logger) { c.Set(contextKey, l) }

// From returns the request logger, or the global logger when none is set.
func From(c echo.Context) *zap.Logger {
	if l, ok := c.Get(contextKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.L()
}
